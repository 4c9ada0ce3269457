package scoring

import "hermes/internal/domain/models"

// defaultBaseWeight applies to event types missing from the tables.
const defaultBaseWeight = 50.0

var globalWeights = map[models.EventType]float64{
	models.TypeEarningsSurprise:      85,
	models.TypeGuidanceRaise:         80,
	models.TypeGuidanceCut:           85,
	models.TypeRevenueMiss:           70,
	models.TypeMarginPressure:        65,
	models.TypeBuybackAnnouncement:   60,
	models.TypeDividendChange:        55,
	models.TypeMergerAcquisition:     75,
	models.TypeRegulatoryAction:      70,
	models.TypeLegalRisk:             60,
	models.TypeProductLaunch:         50,
	models.TypeSupplyChainDisruption: 60,
	models.TypeMacroShock:            70,
	models.TypeRatingUpgrade:         55,
	models.TypeRatingDowngrade:       60,
	models.TypeInsiderActivity:       50,
	models.TypeSectorRotation:        50,
	models.TypeGeopoliticalRisk:      65,
	models.TypeFraudAllegation:       80,
	models.TypeLeadershipChange:      45,
}

var bistWeights = map[models.EventType]float64{
	models.TypeKAPDisclosure:          70,
	models.TypeBedelliCapitalIncrease: 75,
	models.TypeBedelsizBonusIssue:     65,
	models.TypeTemettuAnnouncement:    60,
	models.TypeIhaleKazandi:           70,
	models.TypeIhaleIptal:             70,
	models.TypeSPKAction:              75,
	models.TypeOrtaklikAnlasmasi:      65,
	models.TypeBorclanmaIhraci:        55,
	models.TypeKarUyarisi:             80,
	models.TypeKurRiski:               60,
	models.TypeIhracatSiparisi:        60,
	models.TypeYatirimPlani:           55,
	models.TypeTesisAcilisi:           50,
	models.TypeSektorTesvik:           55,
	models.TypeDavaOlumsuz:            70,
	models.TypeDavaOlumlu:             55,
	models.TypeYonetimDegisim:         45,
	models.TypeOperasyonelAriza:       65,
}

// BaseWeight looks up the 0-100 base impact weight for (scope, eventType).
func BaseWeight(scope models.EventScope, eventType models.EventType) float64 {
	var table map[models.EventType]float64
	switch scope {
	case models.ScopeGlobal:
		table = globalWeights
	default:
		table = bistWeights
	}
	if w, ok := table[eventType]; ok {
		return w
	}
	return defaultBaseWeight
}
