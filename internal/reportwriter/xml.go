// =============================================================================
// Invoice Dashboard - XML Export
// =============================================================================
//
// This module generates XML documents from a filtered view. Every mapped
// field becomes a child element named after the canonical field, so the
// output is stable whatever the source headers were called.
//
// XML STRUCTURE:
//   The generated XML follows this nesting pattern:
//
//   <invoices source="q1.csv" count="2">    <!-- Root element -->
//     <invoice n="1" row="2">                <!-- Record with index and source row -->
//       <invoice_no>INV-1</invoice_no>
//       <invoice_amount>1000</invoice_amount>
//       <issue_date>2025-01-15</issue_date>
//       <outstanding_amount>0</outstanding_amount>
//     </invoice>
//     <invoice n="2" row="3">
//       <invoice_no>INV-2</invoice_no>
//       <invoice_amount/>                    <!-- Null cells are self-closing -->
//       <outstanding_amount>0</outstanding_amount>
//     </invoice>
//   </invoices>
//
// CUSTOMIZATION:
//   - Rename the root and record elements via GenerateOptions
//   - Add attributes to the root element as needed
//   - Drop empty elements with OmitNull
//
// =============================================================================

package reportwriter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// OutstandingElement is the element carrying the derived outstanding amount.
const OutstandingElement = "outstanding_amount"

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootElement and RecordElement name the two levels of the document.
	// Default: "invoices" and "invoice"
	RootElement   string
	RecordElement string

	// RootAttributes are additional attributes for the root element.
	// Example: {"xmlns": "http://example.com/invoices"}
	RootAttributes map[string]string

	// IndexAttribute is the attribute name for the record index.
	// Default: "n"
	IndexAttribute string

	// OmitNull drops elements for Null cells instead of writing them empty.
	OmitNull bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RootElement:           "invoices",
		RecordElement:         "invoice",
		RootAttributes:        make(map[string]string),
		IndexAttribute:        "n",
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// GenerateXML creates an XML document from view.
//
// PARAMETERS:
//   - view: The filtered records.
//   - source: The upload name, written as the root "source" attribute.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if generation fails.
func GenerateXML(view dataset.View, source string) ([]byte, error) {
	return GenerateXMLWithOptions(view, source, DefaultGenerateOptions())
}

// GenerateXMLWithOptions creates an XML document with custom options.
func GenerateXMLWithOptions(view dataset.View, source string, options GenerateOptions) ([]byte, error) {
	if options.RootElement == "" || options.RecordElement == "" {
		return nil, fmt.Errorf("root and record element names are required")
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	}

	root := element{name: options.RootElement}
	if source != "" {
		root.attrs = append(root.attrs, attr{"source", source})
	}
	root.attrs = append(root.attrs, attr{"count", strconv.Itoa(view.Len())})
	for _, key := range sortedKeys(options.RootAttributes) {
		root.attrs = append(root.attrs, attr{key, options.RootAttributes[key]})
	}

	fields := view.Mapping.Mapped()
	for i, r := range view.Records {
		root.children = append(root.children, buildRecordElement(r, i+1, fields, options))
	}

	writeElement(&buffer, root, options.Indent, 0)
	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

type attr struct {
	name, value string
}

// element is a generic XML element. A non-empty value wins over children.
type element struct {
	name     string
	attrs    []attr
	value    string
	children []element
}

// buildRecordElement constructs one record element.
//
// STRUCTURE:
//
//	<invoice n="1" row="2">
//	  <client>Acme</client>
//	  <outstanding_amount>0</outstanding_amount>
//	</invoice>
func buildRecordElement(r dataset.Record, index int, fields []schema.Field, options GenerateOptions) element {
	e := element{
		name: options.RecordElement,
		attrs: []attr{
			{options.IndexAttribute, strconv.Itoa(index)},
			{"row", strconv.Itoa(r.Row())},
		},
	}

	for _, f := range fields {
		c := r.Cell(f)
		if c.IsNull() && options.OmitNull {
			continue
		}
		e.children = append(e.children, element{name: string(f), value: c.String()})
	}
	e.children = append(e.children, element{name: OutstandingElement, value: r.Outstanding().String()})
	return e
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, e element, indent string, level int) {
	buffer.WriteString(strings.Repeat(indent, level))
	buffer.WriteString("<")
	buffer.WriteString(e.name)
	for _, a := range e.attrs {
		fmt.Fprintf(buffer, " %s=\"%s\"", a.name, escapeXML(a.value))
	}

	if len(e.children) == 0 && e.value == "" {
		buffer.WriteString("/>\n")
		return
	}
	buffer.WriteString(">")

	if e.value != "" {
		buffer.WriteString(escapeXML(e.value))
	} else {
		buffer.WriteString("\n")
		for _, child := range e.children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(strings.Repeat(indent, level))
	}

	buffer.WriteString("</")
	buffer.WriteString(e.name)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML and drops the characters XML
// 1.0 cannot carry.
func escapeXML(s string) string {
	var buffer bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		case '\t', '\n', '\r':
			buffer.WriteRune(r)
		default:
			// Other C0 controls and the two noncharacters are not legal XML
			// 1.0 text even as references.
			if r < 0x20 || r == 0xFFFE || r == 0xFFFF {
				continue
			}
			buffer.WriteRune(r)
		}
	}
	return buffer.String()
}

// =============================================================================
// XSD GENERATION
// =============================================================================

// GenerateXSD creates an XSD schema matching the documents GenerateXML emits
// for mapping. Every field element is optional since Null cells may be
// omitted.
func GenerateXSD(mapping schema.ColumnMapping, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	buffer.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
`)

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="%s" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="source" type="xs:string"/>
      <xs:attribute name="count" type="xs:nonNegativeInteger"/>
    </xs:complexType>
  </xs:element>

`, options.RootElement, options.RecordElement)

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
`, options.RecordElement)

	for _, f := range mapping.Mapped() {
		fmt.Fprintf(&buffer, "        <xs:element name=\"%s\" type=\"%s\" minOccurs=\"0\"/>\n", f, xsdType(f.Kind()))
	}
	fmt.Fprintf(&buffer, "        <xs:element name=\"%s\" type=\"xs:decimal\"/>\n", OutstandingElement)

	fmt.Fprintf(&buffer, `      </xs:sequence>
      <xs:attribute name="%s" type="xs:positiveInteger" use="required"/>
      <xs:attribute name="row" type="xs:positiveInteger"/>
    </xs:complexType>
  </xs:element>

</xs:schema>
`, options.IndexAttribute)

	return buffer.Bytes(), nil
}

// xsdType maps field kinds to XSD types. Dates may carry a clock, so they
// are left as strings.
func xsdType(k schema.Kind) string {
	switch k {
	case schema.KindAmount:
		return "xs:decimal"
	case schema.KindInteger:
		return "xs:integer"
	default:
		return "xs:string"
	}
}
