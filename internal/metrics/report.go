package metrics

import "mybank/internal/core/domain"

// Thresholds on traffic intensity.
const (
	overloaded = 1.0
	highLoad   = 0.8
	moderate   = 0.5
)

func assess(r *domain.QueueReport) {
	r.SystemStatus = systemStatus(r)
	r.ResponseAssessment = responseAssessment(r.MeanResponseMillis)
	r.QueueAssessment = queueAssessment(r.MeanWaitMillis)
	r.HealthAssessment = healthAssessment(r)
}

func systemStatus(r *domain.QueueReport) string {
	if r.TransfersSubmitted == 0 {
		return "IDLE"
	}
	switch rho := r.TrafficIntensity; {
	case rho >= overloaded:
		return "OVERLOADED"
	case rho >= highLoad:
		return "HIGH LOAD"
	case rho >= moderate:
		return "MODERATE LOAD"
	default:
		return "LOW LOAD"
	}
}

func responseAssessment(ms float64) string {
	switch {
	case ms < 100:
		return "Excellent (< 100ms)"
	case ms < 500:
		return "Good (< 500ms)"
	case ms < 1000:
		return "Fair (< 1s)"
	default:
		return "Poor (>= 1s)"
	}
}

func queueAssessment(waitMs float64) string {
	switch {
	case waitMs < 10:
		return "Minimal queue buildup"
	case waitMs < 100:
		return "Moderate queue buildup"
	case waitMs < 500:
		return "Significant queue buildup"
	default:
		return "Severe queue buildup"
	}
}

func healthAssessment(r *domain.QueueReport) string {
	if r.TransfersSubmitted == 0 {
		return "No traffic observed"
	}
	switch rho := r.TrafficIntensity; {
	case rho >= overloaded:
		return "System cannot keep up with demand"
	case rho >= highLoad:
		return "System near capacity, consider scaling"
	case rho >= moderate:
		return "System handling load well"
	default:
		return "System has excess capacity"
	}
}
