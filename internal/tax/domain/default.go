package domain

// DefaultTableZA2025 carries the 2024/2025 South African statutory
// parameters as shipped defaults. All money values are cents; the
// bracket table is annual.
func DefaultTableZA2025() CreateTableRequest {
	return CreateTableRequest{
		Version: "ZA-2024-2025",
		Brackets: []Bracket{
			{LowerCents: 0, Rate: 0.18, BaseCents: 0},
			{LowerCents: 23_710_100, Rate: 0.26, BaseCents: 4_267_800},
			{LowerCents: 37_050_100, Rate: 0.31, BaseCents: 7_736_200},
			{LowerCents: 51_280_100, Rate: 0.36, BaseCents: 12_147_500},
			{LowerCents: 67_300_100, Rate: 0.39, BaseCents: 17_914_700},
			{LowerCents: 85_790_100, Rate: 0.41, BaseCents: 25_125_800},
			{LowerCents: 181_700_100, Rate: 0.45, BaseCents: 64_448_900},
		},
		PrimaryRebateCents:         1_723_500,
		UIFEmployeeRate:            0.01,
		UIFEmployerRate:            0.01,
		UIFCeilingCents:            17_712,
		SDLRate:                    0.01,
		SDLExemptionThresholdCents: 50_000_000,
		Activate:                   true,
	}
}
