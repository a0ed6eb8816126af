package templates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"gopkg.in/yaml.v3"
)

// ErrImageUnavailable is returned when no trusted image URI is published.
var ErrImageUnavailable = errors.New("trusted image uri is not available")

// ErrFloatingTag is returned for images tagged "latest".
var ErrFloatingTag = errors.New("image tag 'latest' is not allowed")

// ValidateImageURI checks that uri is a full registry reference pinned to an
// explicit tag other than "latest".
func ValidateImageURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" || strings.EqualFold(uri, "latest") {
		return ErrImageUnavailable
	}
	named, err := reference.ParseNormalizedNamed(uri)
	if err != nil {
		return fmt.Errorf("parse image uri %q: %w", uri, err)
	}
	if domain := reference.Domain(named); !strings.HasPrefix(uri, domain+"/") {
		return fmt.Errorf("image uri %q must include its registry", uri)
	}
	tagged, ok := named.(reference.Tagged)
	if !ok {
		return fmt.Errorf("image uri %q has no tag", uri)
	}
	if strings.EqualFold(tagged.Tag(), "latest") {
		return ErrFloatingTag
	}
	return nil
}

// CheckRequiredParameters verifies that a template (YAML or JSON) declares
// every named parameter and that none of them carries a Default, so the
// caller must always supply them.
//
// The template is walked as a yaml.Node tree so intrinsic-function tags such
// as !Ref or !Sub elsewhere in the document do not need resolving.
func CheckRequiredParameters(template []byte, names ...string) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(template, &doc); err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if len(doc.Content) == 0 {
		return fmt.Errorf("template is empty")
	}
	params := mappingValue(doc.Content[0], "Parameters")
	if params == nil {
		return fmt.Errorf("template declares no Parameters")
	}
	var problems []string
	for _, name := range names {
		p := mappingValue(params, name)
		if p == nil {
			problems = append(problems, fmt.Sprintf("parameter %s is not declared", name))
			continue
		}
		if mappingValue(p, "Default") != nil {
			problems = append(problems, fmt.Sprintf("parameter %s must not have a Default", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("template parameters invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
