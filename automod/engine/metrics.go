package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moderation_message_duration_sec",
	Help: "Total duration of per-message moderation processing",
})

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_messages_processed",
	Help: "Number of chat messages run through the moderation pipeline",
}, []string{"channel"})

var messageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_message_errors",
	Help: "Number of messages which failed processing",
}, []string{"channel"})

var actionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_actions_taken",
	Help: "Number of enforcement actions, by kind",
}, []string{"action"})

var commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_commands_handled",
	Help: "Number of admin chat commands handled",
}, []string{"command"})
