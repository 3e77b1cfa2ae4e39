package artifacts

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// RequirementIDs is a comma-separated attribute of requirement identifiers
type RequirementIDs []string

// UnmarshalXMLAttr implements xml.UnmarshalerAttr
func (r *RequirementIDs) UnmarshalXMLAttr(attr xml.Attr) error {
	var ids []string
	for _, part := range strings.Split(attr.Value, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	*r = ids
	return nil
}

// DeploymentView is the root of a TASTE Deployment View artifact
type DeploymentView struct {
	Version      string `xml:"version,attr" json:"version"`
	UIFile       string `xml:"UiFile,attr" json:"uiFile"`
	CreatorHash  string `xml:"creatorHash,attr" json:"creatorHash"`
	ModifierHash string `xml:"modifierHash,attr" json:"modifierHash"`

	Nodes       []*Node         `xml:"Node" json:"nodes"`
	Connections []*DVConnection `xml:"Connection" json:"connections"`
}

// FindNode looks a node up by name
func (dv *DeploymentView) FindNode(name string) *Node {
	for _, n := range dv.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Node is one deployment node hosting partitions and devices
type Node struct {
	ID             string         `xml:"id,attr" json:"id"`
	Name           string         `xml:"name,attr" json:"name"`
	Type           string         `xml:"type,attr" json:"type"`
	NodeLabel      string         `xml:"node_label,attr" json:"nodeLabel"`
	Namespace      string         `xml:"namespace,attr" json:"namespace"`
	RequirementIDs RequirementIDs `xml:"requirement_ids,attr" json:"requirementIds"`

	Partitions []*Partition `xml:"Partition" json:"partitions"`
	Devices    []*Device    `xml:"Device" json:"devices"`
}

// Partition groups the functions bound to one execution partition
type Partition struct {
	ID        string                `xml:"id,attr" json:"id"`
	Name      string                `xml:"name,attr" json:"name"`
	Functions []*DeploymentFunction `xml:"Function" json:"functions"`
}

// DeploymentFunction binds an interface-view function into a partition
type DeploymentFunction struct {
	ID   string `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
	Path string `xml:"path,attr" json:"path"`
}

// Device is a hardware device attached to a node
type Device struct {
	ID                string         `xml:"id,attr" json:"id"`
	Name              string         `xml:"name,attr" json:"name"`
	RequiresBusAccess Bool           `xml:"requires_bus_access,attr" json:"requiresBusAccess"`
	Port              string         `xml:"port,attr" json:"port"`
	ASN1File          string         `xml:"asn1file,attr" json:"asn1file"`
	ASN1Type          string         `xml:"asn1type,attr" json:"asn1type"`
	ASN1Module        string         `xml:"asn1module,attr" json:"asn1module"`
	Namespace         string         `xml:"namespace,attr" json:"namespace"`
	Extends           string         `xml:"extends,attr" json:"extends"`
	ImplExtends       string         `xml:"impl_extends,attr" json:"implExtends"`
	BusNamespace      string         `xml:"bus_namespace,attr" json:"busNamespace"`
	RequirementIDs    RequirementIDs `xml:"requirement_ids,attr" json:"requirementIds"`
}

// DVConnection is a bus connection between deployment nodes
type DVConnection struct {
	ID       string     `xml:"id,attr" json:"id"`
	Name     string     `xml:"name,attr" json:"name"`
	FromNode string     `xml:"from_node,attr" json:"fromNode"`
	FromPort string     `xml:"from_port,attr" json:"fromPort"`
	ToBus    string     `xml:"to_bus,attr" json:"toBus"`
	ToNode   string     `xml:"to_node,attr" json:"toNode"`
	ToPort   string     `xml:"to_port,attr" json:"toPort"`
	Messages []*Message `xml:"Message" json:"messages"`
}

// Message is one logical message carried over a connection
type Message struct {
	ID            string `xml:"id,attr" json:"id"`
	Name          string `xml:"name,attr" json:"name"`
	FromFunction  string `xml:"from_function,attr" json:"fromFunction"`
	FromInterface string `xml:"from_interface,attr" json:"fromInterface"`
	ToFunction    string `xml:"to_function,attr" json:"toFunction"`
	ToInterface   string `xml:"to_interface,attr" json:"toInterface"`
}

// ReadDeploymentView reads and parses a TASTE Deployment View XML file
func ReadDeploymentView(path string) (*DeploymentView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: deployment view %s: %v", ErrArtifactUnreadable, path, err)
	}
	return ParseDeploymentView(path, data)
}

// ParseDeploymentView parses Deployment View XML content. The path is used
// only for error reporting.
func ParseDeploymentView(path string, data []byte) (*DeploymentView, error) {
	var dv DeploymentView
	if err := xml.Unmarshal(data, &dv); err != nil {
		return nil, fmt.Errorf("%w: deployment view %s: %v", ErrArtifactMalformed, path, err)
	}
	return &dv, nil
}
