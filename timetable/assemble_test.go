package timetable

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/hazyhaar/mykonosbus/catalog"
)

func assemblePage(t *testing.T, page string, diag Diagnostics) ScheduleSet {
	t.Helper()
	cat := catalog.Default()
	panels, err := Locate(page, cat, diag)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	return Assemble(cat, panels, ExtractTable, diag)
}

func TestAssemble_CoversCatalog(t *testing.T) {
	// WHAT: Every catalog route gets exactly one record for any panel input.
	// WHY: Clients index the response by route name and expect all of them.
	cat := catalog.Default()
	empty := func(func(Panel) bool) {}

	inputs := map[string]ScheduleSet{
		"nil":     Assemble(cat, nil, nil, nil),
		"empty":   Assemble(cat, empty, nil, nil),
		"fixture": assemblePage(t, readPage(t), nil),
	}
	for name, set := range inputs {
		if len(set.Routes) != cat.Len() {
			t.Errorf("%s: got %d routes, want %d", name, len(set.Routes), cat.Len())
		}
		for _, r := range cat.Routes() {
			rs, ok := set.Routes[r.CanonicalName]
			if !ok {
				t.Errorf("%s: missing %q", name, r.CanonicalName)
				continue
			}
			if rs.LineID != r.ExternalID {
				t.Errorf("%s: %q lineId = %q", name, r.CanonicalName, rs.LineID)
			}
			if rs.Served() == (rs.Message != "") {
				t.Errorf("%s: %q has both or neither of times and message", name, r.CanonicalName)
			}
		}
	}
}

func TestAssemble_EndToEnd(t *testing.T) {
	set := assemblePage(t, readPage(t), nil)

	got := set.Routes["fabrika (mykonos town) - airport"]
	want := RouteSchedule{
		LineID:        "1559047590770-061945df-35ac",
		HeaderImage:   "https://mykonosbusmap.com/images/stops_fabrika-airport_01.svg",
		OldPort:       []string{"Fabrika", "09:00", "10:00"},
		NewPort:       []string{"Airport", "09:15", "10:15"},
		HasMiddleStop: false,
	}
	if !slices.Equal(got.OldPort, want.OldPort) || !slices.Equal(got.NewPort, want.NewPort) {
		t.Errorf("times: old=%v new=%v", got.OldPort, got.NewPort)
	}
	if got.LineID != want.LineID || got.HeaderImage != want.HeaderImage || got.HasMiddleStop || got.Message != "" || got.MidPort != nil {
		t.Errorf("record: %+v", got)
	}

	served, none := set.Counts()
	if served != 2 || none != 14 {
		t.Errorf("served=%d noService=%d, want 2/14", served, none)
	}
	for name, rs := range set.Routes {
		if name == "fabrika (mykonos town) - airport" || name == "fabrika (mykonos town) - ornos - agios ioannis" {
			continue
		}
		if rs.Message != NoServiceMessage || rs.OldPort != nil || rs.NewPort != nil {
			t.Errorf("%q: %+v", name, rs)
		}
	}
}

func TestAssemble_ThreeStop(t *testing.T) {
	set := assemblePage(t, readPage(t), nil)
	rs := set.Routes["fabrika (mykonos town) - ornos - agios ioannis"]

	if !rs.HasMiddleStop {
		t.Fatal("expected hasMiddleStop")
	}
	if !slices.Equal(rs.OldPort, []string{"Fabrika", "08:00", "23:30", "01:00"}) {
		t.Errorf("oldPort: %v", rs.OldPort)
	}
	if !slices.Equal(rs.MidPort, []string{"Ornos", "08:10", "23:40", "01:10"}) {
		t.Errorf("midPort: %v", rs.MidPort)
	}
	if !slices.Equal(rs.NewPort, []string{"Agios Ioannis", "08:20", "23:50", "01:20"}) {
		t.Errorf("newPort: %v", rs.NewPort)
	}
}

func TestAssemble_JSONShape(t *testing.T) {
	set := assemblePage(t, readPage(t), nil)

	data, err := json.Marshal(set.Routes["airport - new port"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"lineId":"1559047898109-40e76be5-801f","headerImage":"https://mykonosbusmap.com/images/stops_airport-newport_01.svg","hasMiddleStop":false,"message":"No service available—check back later"}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}

	data, _ = json.Marshal(set.Routes["fabrika (mykonos town) - airport"])
	want = `{"lineId":"1559047590770-061945df-35ac","headerImage":"https://mykonosbusmap.com/images/stops_fabrika-airport_01.svg","oldPort":["Fabrika","09:00","10:00"],"newPort":["Airport","09:15","10:15"],"hasMiddleStop":false}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	// WHAT: Two assemblies of the same page marshal to identical bytes.
	// WHY: Nothing time-dependent may leak into the extracted data.
	page := readPage(t)
	a, err := json.Marshal(assemblePage(t, page, nil))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(assemblePage(t, page, nil))
	if string(a) != string(b) {
		t.Error("assemble is not deterministic")
	}
}

func TestAssemble_Diagnostics(t *testing.T) {
	rec := &Recorder{}
	assemblePage(t, readPage(t), rec)

	kinds := rec.Kinds()
	if !slices.Contains(kinds, DiagUnknownPanel) || !slices.Contains(kinds, DiagMalformedSection) {
		t.Errorf("kinds: %v", kinds)
	}
	for _, d := range rec.All() {
		if d.Kind == DiagMalformedSection && d.Route != "airport - new port" {
			t.Errorf("malformed section on wrong route: %+v", d)
		}
	}
}

func TestAssemble_DuplicatePanelFirstValidWins(t *testing.T) {
	page := `
<div class="vc_tta-panel" id="1559047898109-40e76be5-801f"><table><tr><td>closed</td><td>closed</td></tr></table></div>
<div class="vc_tta-panel" id="1559047898109-40e76be5-801f"><table><tr><th>A</th><th>B</th></tr><tr><td>08:00</td><td>08:30</td></tr></table></div>
<div class="vc_tta-panel" id="1559047898109-40e76be5-801f"><table><tr><th>A</th><th>B</th></tr><tr><td>12:00</td><td>12:30</td></tr></table></div>`
	rec := &Recorder{}
	set := assemblePage(t, page, rec)

	rs := set.Routes["airport - new port"]
	if !slices.Equal(rs.OldPort, []string{"A", "08:00"}) {
		t.Errorf("oldPort: %v", rs.OldPort)
	}
	dups := 0
	for _, k := range rec.Kinds() {
		if k == DiagDuplicatePanel {
			dups++
		}
	}
	if dups != 2 {
		t.Errorf("duplicate diagnostics: got %d, want 2", dups)
	}
}

func TestAssemble_ColumnMismatch(t *testing.T) {
	page := `<div class="vc_tta-panel" id="1559047898109-40e76be5-801f"><table>
<tr><th>Airport</th><th>New Port</th></tr>
<tr><td>09:00</td><td>09:15</td></tr>
<tr><td>10:00</td><td>10:15</td></tr>
<tr><td>11:00</td><td></td></tr></table></div>`
	rec := &Recorder{}
	set := assemblePage(t, page, rec)

	rs := set.Routes["airport - new port"]
	if !slices.Equal(rs.OldPort, []string{"Airport", "09:00", "10:00"}) || !slices.Equal(rs.NewPort, []string{"New Port", "09:15", "10:15"}) {
		t.Errorf("old=%v new=%v", rs.OldPort, rs.NewPort)
	}
	if !slices.Equal(rec.Kinds(), []DiagnosticKind{DiagColumnMismatch}) {
		t.Errorf("kinds: %v", rec.Kinds())
	}
}

func TestAssemble_CustomExtractor(t *testing.T) {
	cat := catalog.Default()
	panels, _ := Locate(readPage(t), cat, nil)
	calls := 0
	fn := func(p Panel, _ Diagnostics) *Extraction {
		calls++
		return &Extraction{OldPort: []string{"X", "07:00"}, NewPort: []string{"Y", "07:30"}}
	}
	set := Assemble(cat, panels, fn, nil)

	if calls != 3 {
		t.Errorf("extractor calls: %d", calls)
	}
	if rs := set.Routes["airport - new port"]; !rs.Served() {
		t.Errorf("custom extractor result not used: %+v", rs)
	}
}
