// Package router picks the agent for an inbound message by its prefix and
// turns every outcome into reply text for the sender.
package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/metrics"
	"github.com/jrjocham/apihub/internal/model"
	"github.com/jrjocham/apihub/internal/util"
)

// Apology replaces any agent failure in the reply.
const Apology = "An error occurred while communicating with Nomi."

type AgentSender interface {
	Send(ctx context.Context, agentID, text string) (string, error)
}

type Dispatcher struct {
	routes      *model.RoutingTable
	agent       AgentSender
	log         *zap.Logger
	instruction string
}

func NewDispatcher(routes *model.RoutingTable, agent AgentSender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		routes:      routes,
		agent:       agent,
		log:         log,
		instruction: Instruction(routes.Prefixes()),
	}
}

// Instruction lists the valid prefixes, e.g.
// "Please start your message with a valid prefix: W:, G:, or L: to talk to a Nomi."
func Instruction(prefixes []string) string {
	var list string
	switch n := len(prefixes); n {
	case 0:
	case 1:
		list = prefixes[0]
	case 2:
		list = prefixes[0] + " or " + prefixes[1]
	default:
		list = strings.Join(prefixes[:n-1], ", ") + ", or " + prefixes[n-1]
	}

	return "Please start your message with a valid prefix: " + list + " to talk to a Nomi."
}

// SplitPrefix trims body and cuts it after model.PrefixLen characters.
func SplitPrefix(body string) (prefix, content string) {
	body = strings.TrimSpace(body)
	r := []rune(body)
	if len(r) <= model.PrefixLen {
		return body, ""
	}

	return string(r[:model.PrefixLen]), strings.TrimSpace(string(r[model.PrefixLen:]))
}

// Route returns the reply text for msg. It never fails: agent errors become
// Apology and unknown prefixes get the instructional message.
func (d *Dispatcher) Route(ctx context.Context, msg model.InboundMessage) string {
	d.log.Info("inbound message",
		zap.String("from", msg.From),
		zap.String("body", msg.Body),
		zap.String("sid", msg.MessageSid),
	)

	prefix, content := SplitPrefix(msg.Body)
	agentID, ok := d.routes.Lookup(prefix)
	if !ok {
		d.log.Warn("unrecognized prefix", zap.String("from", msg.From), zap.String("prefix", prefix))
		metrics.MessagesTotal.WithLabelValues(model.OutcomeRejected.String(), "none").Inc()
		return d.instruction
	}

	d.log.Info("routing message", zap.String("prefix", prefix), zap.String("agent_id", agentID))

	reply, err := d.agent.Send(ctx, agentID, content)
	if err != nil {
		d.log.Error("agent call failed",
			zap.String("correlation_id", util.NewCorrelationID()),
			zap.String("agent_id", agentID),
			zap.String("from", msg.From),
			zap.Error(err),
		)
		metrics.MessagesTotal.WithLabelValues(model.OutcomeFailed.String(), prefix).Inc()
		return Apology
	}

	metrics.MessagesTotal.WithLabelValues(model.OutcomeReplied.String(), prefix).Inc()

	return reply
}
