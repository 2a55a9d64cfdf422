package timetable

import (
	"strings"
	"testing"

	"github.com/hazyhaar/mykonosbus/catalog"
)

func TestPanelMarkdown(t *testing.T) {
	panels, err := Locate(readPage(t), catalog.Default(), nil)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	var p Panel
	for p = range panels {
		break
	}

	md, err := PanelMarkdown(p)
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{"## fabrika (mykonos town) - airport", "Fabrika", "09:15", "|"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}
