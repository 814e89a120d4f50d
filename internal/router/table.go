package router

import (
	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/credentials"
	"github.com/jrjocham/apihub/internal/model"
)

// Table pairs the configured prefixes with the agent ids from the credential
// store, in the order Winston, Gates, Lexia.
func Table(cfg config.RoutingConfig, creds credentials.Credentials) (*model.RoutingTable, error) {
	return model.NewRoutingTable(
		model.Route{Prefix: cfg.Winston, AgentID: creds.WinstonID},
		model.Route{Prefix: cfg.Gates, AgentID: creds.GatesID},
		model.Route{Prefix: cfg.Lexia, AgentID: creds.LexiaID},
	)
}
