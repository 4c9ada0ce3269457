package models

import "time"

// EventScope partitions the market domain. Each scope carries its own weight
// table, benchmark candidates, and evaluation horizons.
type EventScope string

const (
	ScopeBIST   EventScope = "bist"
	ScopeGlobal EventScope = "global"
)

// Polarity is the directional reading of an event.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityMixed    Polarity = "mixed"
)

// Horizon hints how long an event is expected to stay market-relevant.
type Horizon string

const (
	HorizonIntraday  Horizon = "intraday"
	HorizonShortTerm Horizon = "1-3d"
	HorizonMultiweek Horizon = "multiweek"
)

// RiskFlag marks a quality/credibility concern attached to an event.
type RiskFlag string

const (
	FlagRumor                 RiskFlag = "rumor"
	FlagLowReliability        RiskFlag = "low_reliability"
	FlagPricedIn              RiskFlag = "priced_in"
	FlagRegulatoryUncertainty RiskFlag = "regulatory_uncertainty"
)

// EventType is a closed enumeration; the sets differ per scope.
type EventType string

// Global-scope event types.
const (
	TypeEarningsSurprise       EventType = "earnings_surprise"
	TypeGuidanceRaise          EventType = "guidance_raise"
	TypeGuidanceCut            EventType = "guidance_cut"
	TypeRevenueMiss            EventType = "revenue_miss"
	TypeMarginPressure         EventType = "margin_pressure"
	TypeBuybackAnnouncement    EventType = "buyback_announcement"
	TypeDividendChange         EventType = "dividend_change"
	TypeMergerAcquisition      EventType = "m_and_a"
	TypeRegulatoryAction       EventType = "regulatory_action"
	TypeLegalRisk              EventType = "legal_risk"
	TypeProductLaunch          EventType = "product_launch"
	TypeSupplyChainDisruption  EventType = "supply_chain_disruption"
	TypeMacroShock             EventType = "macro_shock"
	TypeRatingUpgrade          EventType = "rating_upgrade"
	TypeRatingDowngrade        EventType = "rating_downgrade"
	TypeInsiderActivity        EventType = "insider_activity"
	TypeSectorRotation         EventType = "sector_rotation"
	TypeGeopoliticalRisk       EventType = "geopolitical_risk"
	TypeFraudAllegation        EventType = "fraud_allegation"
	TypeLeadershipChange       EventType = "leadership_change"
)

// BIST-scope event types.
const (
	TypeKAPDisclosure          EventType = "kap_disclosure"
	TypeBedelliCapitalIncrease EventType = "bedelli_capital_increase"
	TypeBedelsizBonusIssue     EventType = "bedelsiz_bonus_issue"
	TypeTemettuAnnouncement    EventType = "temettu_announcement"
	TypeIhaleKazandi           EventType = "ihale_kazandi"
	TypeIhaleIptal             EventType = "ihale_iptal"
	TypeSPKAction              EventType = "spk_action"
	TypeOrtaklikAnlasmasi      EventType = "ortaklik_anlasmasi"
	TypeBorclanmaIhraci        EventType = "borclanma_ihraci"
	TypeKarUyarisi             EventType = "kar_uyarisi"
	TypeKurRiski               EventType = "kur_riski"
	TypeIhracatSiparisi        EventType = "ihracat_siparisi"
	TypeYatirimPlani           EventType = "yatirim_plani"
	TypeTesisAcilisi           EventType = "tesis_acilisi"
	TypeSektorTesvik           EventType = "sektor_tesvik"
	TypeDavaOlumsuz            EventType = "dava_olumsuz"
	TypeDavaOlumlu             EventType = "dava_olumlu"
	TypeYonetimDegisim         EventType = "yonetim_degisim"
	TypeOperasyonelAriza       EventType = "operasyonel_ariza"
)

// Event is a fully-formed news/disclosure event produced by the external
// extractor. Immutable once created; this core only reads it.
type Event struct {
	ID                 string
	Scope              EventScope
	Symbol             string
	ArticleID          string
	Headline           string
	EventType          EventType
	Polarity           Polarity
	Severity           float64 // 0-100
	Confidence         float64 // 0-1
	HorizonHint        Horizon
	RiskFlags          []RiskFlag
	SourceName         string
	SourceReliability  float64 // 0-100
	PublishedAt        time.Time
	CreatedAt          time.Time
	IngestDelayMinutes float64
	RawScore           float64
	FinalScore         float64
	ArticleURL         string
}

// HasFlag reports whether the event carries the given risk flag.
func (e *Event) HasFlag(f RiskFlag) bool {
	for _, rf := range e.RiskFlags {
		if rf == f {
			return true
		}
	}
	return false
}
