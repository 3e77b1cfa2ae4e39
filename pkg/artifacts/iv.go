// Package artifacts provides typed models and readers for the system
// engineering artifacts a document draws from: TASTE Interface View and
// Deployment View XML files and System Object CSV tables.
package artifacts

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// Bool is an XML attribute boolean. TASTE editors emit both YES/NO and
// true/false spellings; both are accepted, case-insensitively.
type Bool bool

// UnmarshalXMLAttr implements xml.UnmarshalerAttr
func (b *Bool) UnmarshalXMLAttr(attr xml.Attr) error {
	switch strings.ToLower(attr.Value) {
	case "yes", "true":
		*b = true
	case "no", "false", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean attribute %s=%q", attr.Name.Local, attr.Value)
	}
	return nil
}

// InterfaceKind classifies a function interface
type InterfaceKind string

const (
	KindSporadic    InterfaceKind = "Sporadic"
	KindCyclic      InterfaceKind = "Cyclic"
	KindProtected   InterfaceKind = "Protected"
	KindUnprotected InterfaceKind = "Unprotected"
)

// UnmarshalXMLAttr implements xml.UnmarshalerAttr
func (k *InterfaceKind) UnmarshalXMLAttr(attr xml.Attr) error {
	switch InterfaceKind(attr.Value) {
	case KindSporadic, KindCyclic, KindProtected, KindUnprotected:
		*k = InterfaceKind(attr.Value)
		return nil
	default:
		return fmt.Errorf("unknown interface kind %q", attr.Value)
	}
}

// Encoding is a parameter wire encoding
type Encoding string

const (
	EncodingNative Encoding = "NATIVE"
	EncodingUPER   Encoding = "UPER"
	EncodingACN    Encoding = "ACN"
)

// UnmarshalXMLAttr implements xml.UnmarshalerAttr
func (e *Encoding) UnmarshalXMLAttr(attr xml.Attr) error {
	switch Encoding(attr.Value) {
	case EncodingNative, EncodingUPER, EncodingACN:
		*e = Encoding(attr.Value)
		return nil
	default:
		return fmt.Errorf("unknown parameter encoding %q", attr.Value)
	}
}

// Language is an implementation language. Kept open because the set of
// supported languages grows with the toolchain.
type Language string

const (
	LanguageSDL      Language = "SDL"
	LanguageC        Language = "C"
	LanguageAda      Language = "Ada"
	LanguageCPP      Language = "C++"
	LanguageSimulink Language = "Simulink"
	LanguageQGenc    Language = "QGenc"
)

// InterfaceView is the root of a TASTE Interface View artifact
type InterfaceView struct {
	Version      string `xml:"version,attr" json:"version"`
	ASN1File     string `xml:"asn1file,attr" json:"asn1file"`
	UIFile       string `xml:"UiFile,attr" json:"uiFile"`
	ModifierHash string `xml:"modifierHash,attr" json:"modifierHash"`

	Functions   []*Function     `xml:"Function" json:"functions"`
	Connections []*IVConnection `xml:"Connection" json:"connections"`
	Comments    []*Comment      `xml:"Comment" json:"comments"`
	Layers      []*Layer        `xml:"Layer" json:"layers"`
}

// FindFunction looks a top-level function up by name
func (iv *InterfaceView) FindFunction(name string) *Function {
	for _, f := range iv.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Function is one function block of the interface view, possibly nesting
// further functions and connections
type Function struct {
	ID                    string   `xml:"id,attr" json:"id"`
	Name                  string   `xml:"name,attr" json:"name"`
	IsType                Bool     `xml:"is_type,attr" json:"isType"`
	Language              Language `xml:"language,attr" json:"language"`
	DefaultImplementation string   `xml:"default_implementation,attr" json:"defaultImplementation"`
	FixedSystemElement    Bool     `xml:"fixed_system_element,attr" json:"fixedSystemElement"`
	RequiredSystemElement Bool     `xml:"required_system_element,attr" json:"requiredSystemElement"`
	InstancesMin          int      `xml:"instances_min,attr" json:"instancesMin"`
	InstancesMax          int      `xml:"instances_max,attr" json:"instancesMax"`
	StartupPriority       int      `xml:"startup_priority,attr" json:"startupPriority"`
	InstanceOf            string   `xml:"instance_of,attr" json:"instanceOf"`
	TypeLanguage          Language `xml:"type_language,attr" json:"typeLanguage"`

	Properties         []*Property          `xml:"Property" json:"properties"`
	ProvidedInterfaces []*FunctionInterface `xml:"Provided_Interface" json:"providedInterfaces"`
	RequiredInterfaces []*FunctionInterface `xml:"Required_Interface" json:"requiredInterfaces"`
	Implementations    []*Implementation    `xml:"Implementations>Implementation" json:"implementations"`
	Functions          []*Function          `xml:"Function" json:"functions"`
	Connections        []*IVConnection      `xml:"Connection" json:"connections"`
}

// UnmarshalXML applies attribute defaults before decoding
func (f *Function) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type function Function
	f.DefaultImplementation = "default"
	f.InstancesMin = 1
	f.InstancesMax = 1
	f.StartupPriority = 1
	return d.DecodeElement((*function)(f), &start)
}

// FunctionInterface is a provided or required interface of a function.
// Timing attributes are zero when the artifact leaves them unset.
type FunctionInterface struct {
	ID                       string        `xml:"id,attr" json:"id"`
	Name                     string        `xml:"name,attr" json:"name"`
	Kind                     InterfaceKind `xml:"kind,attr" json:"kind"`
	EnableMulticast          Bool          `xml:"enable_multicast,attr" json:"enableMulticast"`
	Layer                    string        `xml:"layer,attr" json:"layer"`
	RequiredSystemElement    Bool          `xml:"required_system_element,attr" json:"requiredSystemElement"`
	IsSimulinkInterface      Bool          `xml:"is_simulink_interface,attr" json:"isSimulinkInterface"`
	SimulinkFullInterfaceRef string        `xml:"simulink_full_interface_ref,attr" json:"simulinkFullInterfaceRef"`
	WCET                     int           `xml:"wcet,attr" json:"wcet"`
	StackSize                int           `xml:"stack_size,attr" json:"stackSize"`
	QueueSize                int           `xml:"queue_size,attr" json:"queueSize"`
	MIAT                     int           `xml:"miat,attr" json:"miat"`
	Period                   int           `xml:"period,attr" json:"period"`
	DispatchOffset           int           `xml:"dispatch_offset,attr" json:"dispatchOffset"`
	Priority                 int           `xml:"priority,attr" json:"priority"`

	InputParameters  []*Parameter `xml:"Input_Parameter" json:"inputParameters"`
	OutputParameters []*Parameter `xml:"Output_Parameter" json:"outputParameters"`
	Properties       []*Property  `xml:"Property" json:"properties"`
}

// UnmarshalXML applies attribute defaults before decoding
func (fi *FunctionInterface) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type functionInterface FunctionInterface
	fi.EnableMulticast = true
	fi.Layer = "default"
	if err := d.DecodeElement((*functionInterface)(fi), &start); err != nil {
		return err
	}
	if fi.Kind == "" {
		return fmt.Errorf("interface %q: missing kind attribute", fi.Name)
	}
	return nil
}

// Parameter is a typed interface parameter
type Parameter struct {
	Name     string   `xml:"name,attr" json:"name"`
	Type     string   `xml:"type,attr" json:"type"`
	Encoding Encoding `xml:"encoding,attr" json:"encoding"`
}

// UnmarshalXML applies attribute defaults before decoding
func (p *Parameter) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type parameter Parameter
	p.Encoding = EncodingNative
	return d.DecodeElement((*parameter)(p), &start)
}

// Implementation names one implementation of a function
type Implementation struct {
	Name     string   `xml:"name,attr" json:"name"`
	Language Language `xml:"language,attr" json:"language"`
}

// IVConnection connects a required interface to a provided interface
type IVConnection struct {
	ID                    string    `xml:"id,attr" json:"id"`
	Name                  string    `xml:"name,attr" json:"name"`
	RequiredSystemElement Bool      `xml:"required_system_element,attr" json:"requiredSystemElement"`
	Source                *Endpoint `xml:"Source" json:"source"`
	Target                *Endpoint `xml:"Target" json:"target"`
}

// Endpoint is one side of an interface-view connection
type Endpoint struct {
	InterfaceID  string `xml:"iface_id,attr" json:"ifaceId"`
	FunctionName string `xml:"func_name,attr" json:"functionName"`
	PIName       string `xml:"pi_name,attr" json:"piName"`
	RIName       string `xml:"ri_name,attr" json:"riName"`
}

// InterfaceName returns the provided-interface name, falling back to the
// required-interface name when the endpoint sits on the requiring side
func (e *Endpoint) InterfaceName() string {
	if e.PIName != "" {
		return e.PIName
	}
	return e.RIName
}

// Comment is a free-standing annotation block
type Comment struct {
	ID                    string `xml:"id,attr" json:"id"`
	Name                  string `xml:"name,attr" json:"name"`
	RequiredSystemElement Bool   `xml:"required_system_element,attr" json:"requiredSystemElement"`
}

// Layer is a named diagram layer
type Layer struct {
	Name    string `xml:"name,attr" json:"name"`
	Visible Bool   `xml:"is_visible,attr" json:"visible"`
}

// UnmarshalXML applies attribute defaults before decoding
func (l *Layer) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type layer Layer
	l.Visible = true
	return d.DecodeElement((*layer)(l), &start)
}

// Property is a generic name/value pair attached to functions and interfaces
type Property struct {
	Name  string `xml:"name,attr" json:"name"`
	Value string `xml:"value,attr" json:"value"`
}

// ReadInterfaceView reads and parses a TASTE Interface View XML file
func ReadInterfaceView(path string) (*InterfaceView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: interface view %s: %v", ErrArtifactUnreadable, path, err)
	}
	return ParseInterfaceView(path, data)
}

// ParseInterfaceView parses Interface View XML content. The path is used
// only for error reporting.
func ParseInterfaceView(path string, data []byte) (*InterfaceView, error) {
	var iv InterfaceView
	if err := xml.Unmarshal(data, &iv); err != nil {
		return nil, fmt.Errorf("%w: interface view %s: %v", ErrArtifactMalformed, path, err)
	}
	return &iv, nil
}
