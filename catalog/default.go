package catalog

// defaultRoutes is the Mykonos network as published on mykonosbus.com.
// Panel identifiers are the accordion ids generated by the page builder and
// only change when the operator rebuilds a panel.
var defaultRoutes = []Route{
	{"fabrika (mykonos town) - airport", "1559047590770-061945df-35ac", "stops_fabrika-airport_01.svg"},
	{"airport - new port", "1559047898109-40e76be5-801f", "stops_airport-newport_01.svg"},
	{"fabrika (mykonos town) - new port", "1559047739472-642fcb84-9720", "stops_fabrika-newport_01.svg"},
	{"old port (mykonos town) - new port", "1555955289108-dff46428-1b66", "stops_oldport-newport_01.svg"},
	{"fabrika (mykonos town) - platis gialos", "1555958487476-d80d7cc8-d066", "stops_fabrika-platis_01.svg"},
	{"fabrika (mykonos town) - paradise", "1555958831438-01ea3ba0-76f7", "stops_fabrika-paradise_01.svg"},
	{"fabrika (mykonos town) - super paradise", "1555959036342-cf638a7d-ae31", "stops_fabrika-super_01.svg"},
	{"fabrika (mykonos town) - paraga", "1555958067687-34a62bad-9d2a", "stops_fabrika-paraga_01.svg"},
	{"old port (mykonos town) - elia", "1555957001095-b4b0a91c-695a", "stops_oldport-elia_01.svg"},
	{"old port (mykonos town) - ano mera", "1555955564212-f820a83b-d513", "stops_oldport-anomera_01.svg"},
	// The kalo livadi artwork was published under the paradise file name.
	{"old port (mykonos town) - kalo livadi", "1555957517174-c6496040-c68b", "stops_oldport-paradise_01.svg"},
	{"old port (mykonos town) - kalafatis", "1555955724133-aa71677d-efab", "stops_oldport-kalafatis_01.svg"},
	{"fabrika (mykonos town) - ornos - agios ioannis", "1555953369529-535afd32-cab3", "stops_fabrika-ornos-agios_01.svg"},
	{"old port (mykonos town) - agios stefanos - new port", "1555953369558-22c24d44-888a", "stops_oldport-agios-newport_01.svg"},
	{"old port (mykonos town) - panormos", "1557747887993-356701dd-5541", "stops_oldport-panormos_01.svg"},
	{"fabrika (mykonos town) - kalo livadi", "1720281530535-d5be00b4-2271", "stops_fabrika-kalolivadi_01.svg"},
}

// Default returns the built-in Mykonos catalog with the default image base.
func Default() *Catalog {
	c, err := New(DefaultImageBase, defaultRoutes...)
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}

// DefaultWithImageBase returns the built-in routes resolved against a
// different image host.
func DefaultWithImageBase(imageBase string) *Catalog {
	c, err := New(imageBase, defaultRoutes...)
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}
