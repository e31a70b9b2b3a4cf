package domain

// GlobalStats — агрегированное состояние организации для Console/дашборда.
type GlobalStats struct {
	Status            string  `json:"status"` // healthy / degraded
	HealthScore       float64 `json:"health_score"`
	AgentsSeen        int     `json:"agents_seen"`
	Incidents24h      int     `json:"incidents_24h"`
	QuarantinedAgents int     `json:"quarantined_agents"`
}
