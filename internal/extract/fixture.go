package extract

// DefaultGazetteer returns the built-in maintenance-operations vocabulary.
// It backs the demo deployment and the test suite; production deployments
// point extract.gazetteer_path at their own file.
func DefaultGazetteer() *Gazetteer {
	return &Gazetteer{
		TypeWeights: map[string]float64{
			"equipment":    0.85,
			"symptom":      0.80,
			"severity":     0.75,
			"part":         0.70,
			"stock_status": 0.55,
			"location":     0.75,
			"fault_code":   0.95,
		},
		Terms: map[string][]Term{
			"equipment": {
				{Text: "main engine", Canonical: "main_engine"},
				{Text: "auxiliary engine", Canonical: "aux_engine"},
				{Text: "aux engine", Canonical: "aux_engine"},
				{Text: "boiler", Canonical: "boiler"},
				{Text: "compressor", Canonical: "compressor"},
				{Text: "air compressor", Canonical: "compressor"},
				{Text: "generator", Canonical: "generator"},
				{Text: "hydraulic pump", Canonical: "hydraulic_pump"},
				{Text: "pump", Canonical: "pump", Weight: 0.9},
				{Text: "conveyor", Canonical: "conveyor"},
				{Text: "conveyor belt", Canonical: "conveyor"},
				{Text: "turbine", Canonical: "turbine"},
				{Text: "cooling tower", Canonical: "cooling_tower"},
				{Text: "chiller", Canonical: "chiller"},
			},
			"symptom": {
				{Text: "high temperature", Canonical: "overheating"},
				{Text: "overheating", Canonical: "overheating"},
				{Text: "running hot", Canonical: "overheating"},
				{Text: "vibration", Canonical: "vibration"},
				{Text: "excessive vibration", Canonical: "vibration"},
				{Text: "low pressure", Canonical: "low_pressure"},
				{Text: "pressure drop", Canonical: "low_pressure"},
				{Text: "oil leak", Canonical: "oil_leak"},
				{Text: "leaking", Canonical: "leak"},
				{Text: "leak", Canonical: "leak", Weight: 0.9},
				{Text: "noise", Canonical: "abnormal_noise", Weight: 0.85},
				{Text: "grinding noise", Canonical: "abnormal_noise"},
				{Text: "won't start", Canonical: "no_start"},
				{Text: "not starting", Canonical: "no_start"},
				{Text: "tripping", Canonical: "trip"},
				{Text: "smoke", Canonical: "smoke"},
			},
			"severity": {
				{Text: "critical", Canonical: "critical"},
				{Text: "severe", Canonical: "critical"},
				{Text: "high", Canonical: "high", Weight: 0.85},
				{Text: "urgent", Canonical: "high"},
				{Text: "minor", Canonical: "low"},
				{Text: "low", Canonical: "low", Weight: 0.85},
				{Text: "intermittent", Canonical: "intermittent"},
			},
			"part": {
				{Text: "bearing", Canonical: "bearing"},
				{Text: "gasket", Canonical: "gasket"},
				{Text: "seal", Canonical: "seal", Weight: 0.9},
				{Text: "impeller", Canonical: "impeller"},
				{Text: "filter", Canonical: "filter", Weight: 0.9},
				{Text: "oil filter", Canonical: "oil_filter"},
				{Text: "fuel injector", Canonical: "fuel_injector"},
				{Text: "injector", Canonical: "fuel_injector", Weight: 0.9},
				{Text: "valve", Canonical: "valve", Weight: 0.9},
				{Text: "relief valve", Canonical: "relief_valve"},
				{Text: "belt", Canonical: "belt", Weight: 0.85},
				{Text: "coupling", Canonical: "coupling"},
				{Text: "thermostat", Canonical: "thermostat"},
			},
			"stock_status": {
				{Text: "in stock", Canonical: "in_stock"},
				{Text: "out of stock", Canonical: "out_of_stock"},
				{Text: "low inventory", Canonical: "low_stock"},
				{Text: "critically low", Canonical: "critical_stock"},
				{Text: "on order", Canonical: "on_order"},
				{Text: "backordered", Canonical: "backordered"},
			},
			"location": {
				{Text: "engine room", Canonical: "engine_room"},
				{Text: "boiler room", Canonical: "boiler_room"},
				{Text: "deck 2", Canonical: "deck_2"},
				{Text: "warehouse", Canonical: "warehouse"},
				{Text: "line 1", Canonical: "line_1"},
				{Text: "line 2", Canonical: "line_2"},
				{Text: "plant floor", Canonical: "plant_floor"},
			},
		},
		Patterns: []Pattern{
			// Fault codes like E-101, OVHT-22, F0042.
			{Type: "fault_code", Regexp: `\b[A-Z]{1,4}-?\d{2,4}\b`, Upper: true},
			// Part numbers like PN-10023 or PN 10023.
			{Type: "part", Regexp: `\bPN[- ]?\d{3,}\b`, Weight: 1.0, Upper: true},
		},
	}
}
