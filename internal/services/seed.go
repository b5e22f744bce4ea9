package services

import "budgettable/internal/core"

// Demo data written by InitializeSeed. Period names are spreadsheet date
// serials (Jan..May 2025) as the accounting export uses them.
var (
	seedPeriods = []string{"45658", "45689", "45717", "45748", "45778"}

	seedRoot = core.NewRow{
		Entity:  "ИКС",
		Article: "CS0198234",
		Project: "M5",
	}

	seedChildren = []core.NewRow{
		{Project: "Обслуживание патрубков"},
		{Project: "1 кол-во дгу"},
	}
)
