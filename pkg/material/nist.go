package material

// nistElements lists the elements used by the built-in materials.
var nistElements = []Element{
	{Name: "H", Symbol: "H", Z: 1, A: 1.00794},
	{Name: "C", Symbol: "C", Z: 6, A: 12.0107},
	{Name: "N", Symbol: "N", Z: 7, A: 14.0067},
	{Name: "O", Symbol: "O", Z: 8, A: 15.9994},
	{Name: "Na", Symbol: "Na", Z: 11, A: 22.98977},
	{Name: "Mg", Symbol: "Mg", Z: 12, A: 24.305},
	{Name: "Al", Symbol: "Al", Z: 13, A: 26.981538},
	{Name: "Si", Symbol: "Si", Z: 14, A: 28.0855},
	{Name: "Ar", Symbol: "Ar", Z: 18, A: 39.948},
	{Name: "K", Symbol: "K", Z: 19, A: 39.0983},
	{Name: "Ca", Symbol: "Ca", Z: 20, A: 40.078},
	{Name: "Fe", Symbol: "Fe", Z: 26, A: 55.845},
	{Name: "Cu", Symbol: "Cu", Z: 29, A: 63.546},
	{Name: "Pb", Symbol: "Pb", Z: 82, A: 207.2},
}

// nistMaterials is a subset of the NIST compound and elemental materials.
var nistMaterials = []Material{
	{Name: "G4_Galactic", Density: 1e-25, State: StateGas, Components: []Component{{"H", 1}}},
	{Name: "G4_H", Density: 8.3748e-05, State: StateGas, Components: []Component{{"H", 1}}},
	{Name: "G4_C", Density: 2.0, State: StateSolid, Components: []Component{{"C", 1}}},
	{Name: "G4_N", Density: 1.16528e-03, State: StateGas, Components: []Component{{"N", 1}}},
	{Name: "G4_O", Density: 1.33151e-03, State: StateGas, Components: []Component{{"O", 1}}},
	{Name: "G4_Al", Density: 2.699, State: StateSolid, Components: []Component{{"Al", 1}}},
	{Name: "G4_Si", Density: 2.33, State: StateSolid, Components: []Component{{"Si", 1}}},
	{Name: "G4_Ar", Density: 1.66201e-03, State: StateGas, Components: []Component{{"Ar", 1}}},
	{Name: "G4_lAr", Density: 1.396, State: StateLiquid, Components: []Component{{"Ar", 1}}},
	{Name: "G4_Fe", Density: 7.874, State: StateSolid, Components: []Component{{"Fe", 1}}},
	{Name: "G4_Cu", Density: 8.96, State: StateSolid, Components: []Component{{"Cu", 1}}},
	{Name: "G4_Pb", Density: 11.35, State: StateSolid, Components: []Component{{"Pb", 1}}},
	{
		Name: "G4_AIR", Density: 1.20479e-03, State: StateGas,
		Components: []Component{{"Ar", 0.012827}, {"C", 0.000124}, {"N", 0.755268}, {"O", 0.231781}},
	},
	{
		Name: "G4_WATER", Density: 1.0, State: StateLiquid,
		Components: []Component{{"H", 0.111894}, {"O", 0.888106}},
	},
	{
		Name: "G4_CONCRETE", Density: 2.3, State: StateSolid,
		Components: []Component{
			{"Al", 0.033872}, {"C", 0.001}, {"Ca", 0.044}, {"Fe", 0.014}, {"H", 0.01},
			{"K", 0.013}, {"Mg", 0.002}, {"Na", 0.016}, {"O", 0.529107}, {"Si", 0.337021},
		},
	},
	{
		Name: "G4_PLASTIC_SC_VINYLTOLUENE", Density: 1.032, State: StateSolid,
		Components: []Component{{"C", 0.915}, {"H", 0.085}},
	},
}
