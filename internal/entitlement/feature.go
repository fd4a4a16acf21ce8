package entitlement

// Feature is an opaque feature key gated by the active subscription plan.
type Feature string

const (
	// FeatureMemberLimit meters how many members a mess may hold.
	FeatureMemberLimit Feature = "member_limit"
	// FeatureMealEntry meters meal log entries per billing period.
	FeatureMealEntry Feature = "meal_entry"
	// FeatureReportGenerate meters generated reports per billing period.
	FeatureReportGenerate Feature = "report_generate"
	// FeatureNoticeBoard is a boolean gate for the notice board.
	FeatureNoticeBoard Feature = "notice_board"
	// FeaturePurchaseRequest is a boolean gate for purchase request workflow.
	FeaturePurchaseRequest Feature = "purchase_request"
	// FeatureExportData is a boolean gate for data export.
	FeatureExportData Feature = "export_data"
)

type featureDef struct {
	countable bool
}

var featureDefs = map[Feature]featureDef{
	FeatureMemberLimit:     {countable: true},
	FeatureMealEntry:       {countable: true},
	FeatureReportGenerate:  {countable: true},
	FeatureNoticeBoard:     {countable: false},
	FeaturePurchaseRequest: {countable: false},
	FeatureExportData:      {countable: false},
}

// Features returns every registered feature key in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureMemberLimit,
		FeatureMealEntry,
		FeatureReportGenerate,
		FeatureNoticeBoard,
		FeaturePurchaseRequest,
		FeatureExportData,
	}
}

// Valid reports whether f is a registered feature key.
func (f Feature) Valid() bool {
	_, ok := featureDefs[f]
	return ok
}

// Countable reports whether usage of f is metered against a plan limit.
func (f Feature) Countable() bool {
	return featureDefs[f].countable
}

// planLimits maps (plan, feature) to an optional usage limit. A nil limit
// means unlimited; a missing pair means the feature is not available on the
// plan at all.
var planLimits = map[Plan]map[Feature]*int{
	PlanBasic: {
		FeatureMemberLimit: limit(10),
		FeatureMealEntry:   limit(150),
	},
	PlanPremium: {
		FeatureMemberLimit:     limit(40),
		FeatureMealEntry:       nil,
		FeatureReportGenerate:  limit(20),
		FeatureNoticeBoard:     nil,
		FeaturePurchaseRequest: nil,
	},
	PlanEnterprise: {
		FeatureMemberLimit:     nil,
		FeatureMealEntry:       nil,
		FeatureReportGenerate:  nil,
		FeatureNoticeBoard:     nil,
		FeaturePurchaseRequest: nil,
		FeatureExportData:      nil,
	},
}

// FeatureLimit resolves the usage limit of f on plan p. inPlan is false when
// the plan does not include the feature.
func FeatureLimit(p Plan, f Feature) (usageLimit *int, inPlan bool) {
	limits, ok := planLimits[p]
	if !ok {
		return nil, false
	}
	usageLimit, inPlan = limits[f]
	return usageLimit, inPlan
}

// PlanFeatures returns the features included in a plan.
func PlanFeatures(p Plan) []Feature {
	limits := planLimits[p]
	var features []Feature
	for _, f := range Features() {
		if _, ok := limits[f]; ok {
			features = append(features, f)
		}
	}
	return features
}

func limit(n int) *int {
	return &n
}
