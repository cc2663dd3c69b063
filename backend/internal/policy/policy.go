package policy

// Obligation types understood by the server and MCP surfaces
const (
	ObligationSurfaceResources = "SURFACE_RESOURCES"
	ObligationCrisisBanner     = "SHOW_CRISIS_BANNER"
	ObligationEscalate         = "ESCALATE_TO_HUMAN"
	ObligationRouteEmergency   = "ROUTE_EMERGENCY"
	ObligationFlagForReview    = "FLAG_FOR_REVIEW"
	ObligationLogIntervention  = "LOG_INTERVENTION"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// DefaultRoutingPolicy returns the built-in routing rules used when no policy file is configured
func DefaultRoutingPolicy() *RoutingPolicy {
	return &RoutingPolicy{
		Version: "1.0.0",
		Rules: []RoutingRule{
			{
				Name:        "surface-resources",
				Description: "Show intervention recommendations whenever crisis indicators are present",
				Obligation:  ObligationSurfaceResources,
				Fields:      []string{"intervention_recommendations"},
				When:        Condition{HasCrisis: boolPtr(true)},
			},
			{
				Name:        "crisis-banner",
				Description: "Pin crisis-line resources for high severity and above",
				Obligation:  ObligationCrisisBanner,
				Fields:      []string{"resources"},
				When:        Condition{MinSeverity: "high"},
			},
			{
				Name:        "escalate-to-human",
				Description: "Hand the conversation to a human responder",
				Obligation:  ObligationEscalate,
				When:        Condition{Escalation: boolPtr(true)},
			},
			{
				Name:        "emergency-routing",
				Description: "Route to emergency services",
				Obligation:  ObligationRouteEmergency,
				Fields:      []string{"emergency_services"},
				When:        Condition{Emergency: boolPtr(true)},
			},
			{
				Name:        "failsafe-review",
				Description: "Queue failed analyses for manual review",
				Obligation:  ObligationFlagForReview,
				When:        Condition{Failsafe: boolPtr(true)},
			},
			{
				Name:        "log-intervention",
				Description: "Record a crisis_intervention event",
				Obligation:  ObligationLogIntervention,
				Fields:      []string{"crisis_intervention"},
				When:        Condition{MinImmediateRisk: intPtr(15)},
			},
		},
	}
}
