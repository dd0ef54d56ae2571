package config

import (
	"strings"
	"testing"
)

func TestReadPreferencesKeepsDefaults(t *testing.T) {
	p, err := ReadPreferences(strings.NewReader("prefix: GR_\nexport_scale: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Prefix != "GR_" || p.ExportScale != 1 {
		t.Errorf("overrides not applied: %+v", p)
	}
	def := DefaultPreferences()
	if p.DefPrefix != def.DefPrefix || p.CollectionName != def.CollectionName || !p.AllowExportWithoutPreview {
		t.Errorf("defaults lost: %+v", p)
	}
}

func TestReadPreferencesEmpty(t *testing.T) {
	p, err := ReadPreferences(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if *p != *DefaultPreferences() {
		t.Errorf("empty file changed preferences: %+v", p)
	}
}

func TestReadPreferencesValidation(t *testing.T) {
	for _, in := range []string{
		"export_scale: 0\n",
		"def_prefix: \"\"\n",
		"name_encoding: Klingon\n",
	} {
		if _, err := ReadPreferences(strings.NewReader(in)); err == nil {
			t.Errorf("ReadPreferences(%q) accepted invalid preferences", in)
		}
	}
}

func TestEncodeName(t *testing.T) {
	p := DefaultPreferences()
	if bs, err := p.EncodeName("Café"); err != nil || string(bs) != "Café" {
		t.Errorf("utf-8 EncodeName()=%q, %v", bs, err)
	}

	p.NameEncoding = "Windows 1252"
	bs, err := p.EncodeName("Café")
	if err != nil {
		t.Fatal(err)
	}
	if len(bs) != 4 || bs[3] != 0xe9 {
		t.Errorf("windows-1252 EncodeName()=%x", bs)
	}
}
