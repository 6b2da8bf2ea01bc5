// =============================================================================
// Invoice Dashboard - CSV Parser Module
// =============================================================================
//
// This module is responsible for parsing delimited invoice exports. It handles
// various CSV formats and configurations, including:
//   - Different delimiters (comma, semicolon, pipe, tab), sniffed when "auto"
//   - Multi-line headers
//   - Different encodings (UTF-8 with or without BOM, UTF-16, Latin-1,
//     Windows-1252 and the Arabic Windows-1256 code page)
//   - Quoted fields and ragged rows
//
// The parser does not interpret values. It returns a types.RawTable whose
// cells are the trimmed source text.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/types"
)

var (
	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("file is empty")

	// ErrUnknownEncoding is returned for an unsupported encoding name.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// candidate delimiters, in tie-break order.
var delimiters = []rune{',', ';', '\t', '|'}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a delimited file and returns its raw table.
//
// PARAMETERS:
//   - filePath: The path to the file. ".tsv" and ".txt" files default to tab
//     when the delimiter is "auto" and the first line contains a tab.
//   - settings: The CSV parsing settings from the configuration.
//
// RETURNS:
//   - The raw table with cleaned headers.
//   - An error if the file cannot be read or decoded.
func Parse(filePath string, settings config.CSVSettings) (*types.RawTable, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(filePath, bufio.NewReader(file), settings)
}

// ParseReader is Parse for an already open stream. name is recorded as the
// table's source and used for extension hints.
//
// PARSING PROCESS:
//  1. Decode the stream to UTF-8 according to settings.Encoding
//  2. Resolve the delimiter, sniffing the first line when set to "auto"
//  3. Read every record, allowing ragged rows and lazy quotes
//  4. Merge the header rows and build the table from the rest
func ParseReader(name string, r io.Reader, settings config.CSVSettings) (*types.RawTable, error) {
	dec, err := decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", filepath.Base(name), settings.Encoding, err)
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = resolveDelimiter(settings.Delimiter, name, firstLine(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("%w: fewer rows than header_rows (%d)", ErrEmptyFile, headerRows)
	}

	headers := types.MergeHeaderRows(allRows, headerRows)
	return types.NewRawTable(name, headers, allRows[headerRows:], headerRows+1), nil
}

// =============================================================================
// ENCODING AND DELIMITERS
// =============================================================================

// decoder returns the transformer for an encoding name. UTF-8 input may carry
// a BOM; a UTF-16 BOM switches the decoder automatically.
func decoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.BOMOverride(transform.Nop), nil
	case "UTF-16", "UTF16":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "ISO-8859-1", "LATIN-1", "LATIN1":
		enc = charmap.ISO8859_1
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	case "WINDOWS-1256", "CP1256":
		enc = charmap.Windows1256
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	return enc.NewDecoder(), nil
}

// resolveDelimiter maps a configured delimiter name to a rune.
func resolveDelimiter(setting, name, line string) rune {
	switch setting {
	case "\\t", "\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	case ",", "comma":
		return ','
	case "", "auto":
		ext := strings.ToLower(filepath.Ext(name))
		if (ext == ".tsv" || ext == ".txt") && strings.ContainsRune(line, '\t') {
			return '\t'
		}
		return Sniff(line)
	default:
		return []rune(setting)[0]
	}
}

// Sniff picks the candidate delimiter that occurs most often in line.
// Commas win ties and lines without any candidate.
func Sniff(line string) rune {
	best, bestCount := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func firstLine(data []byte) string {
	for _, line := range bytes.Split(data, []byte("\n")) {
		if s := strings.TrimSpace(string(line)); s != "" {
			return s
		}
	}
	return ""
}
