package services

import "github.com/prometheus/client_golang/prometheus"

var (
	matchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tft_match_requests_total",
			Help: "Match requests by outcome (created, duplicate, invalid, error).",
		},
		[]string{"result"},
	)

	matchResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tft_match_responses_total",
			Help: "Answered match requests by decision.",
		},
		[]string{"decision"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tft_booking_transitions_total",
			Help: "Committed booking status transitions.",
		},
		[]string{"from", "to"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tft_notifications_total",
			Help: "Booking notifications handed to the notifier, by event and delivery result.",
		},
		[]string{"event", "result"},
	)
)

func init() {
	prometheus.MustRegister(matchRequests, matchResponses, bookingTransitions, notifications)
}
