package config

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// FindEncoding looks up a single byte charmap by its name ("Windows 1252", "ISO 8859-1", ...)
func FindEncoding(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

// EncodeName converts name to the bytes written into exported files.
// Empty NameEncoding keeps UTF-8.
func (p *Preferences) EncodeName(name string) ([]byte, error) {
	if p.NameEncoding == "" {
		return []byte(name), nil
	}
	cm, err := FindEncoding(p.NameEncoding)
	if err != nil {
		return nil, err
	}
	bs, _, err := transform.Bytes(cm.NewEncoder(), []byte(name))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't encode %q as %s", name, p.NameEncoding)
	}
	return bs, nil
}
