package logging

import (
	"os"

	"github.com/Combine-Capital/ctxlog/pkg/config"
)

// Infrastructure field names merged as the base of every record.
const (
	FieldHostname    = "hostname"
	FieldPod         = "pod"
	FieldContainer   = "container"
	FieldNode        = "node"
	FieldRegion      = "region"
	FieldZone        = "zone"
	FieldVersion     = "version"
	FieldCommit      = "commit"
	FieldBuild       = "build"
	FieldDeployment  = "deployment"
	FieldEnvironment = "environment"
	FieldApp         = "app"
	FieldPID         = "pid"
)

// infraEnvVars maps record fields to the environment variables that carry
// them in containerized deployments.
var infraEnvVars = map[string]string{
	FieldPod:       "POD_NAME",
	FieldContainer: "CONTAINER_NAME",
	FieldNode:      "NODE_NAME",
	FieldRegion:    "REGION",
	FieldZone:      "ZONE",
}

// infraContext computes the process-lifetime infrastructure field set.
// It runs once at logger construction; the result is never mutated.
func infraContext(cfg *config.Config) map[string]any {
	fields := map[string]any{
		FieldEnvironment: cfg.Service.Env,
		FieldPID:         os.Getpid(),
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields[FieldHostname] = hostname
	}
	for field, envVar := range infraEnvVars {
		if v := os.Getenv(envVar); v != "" {
			fields[field] = v
		}
	}

	if cfg.Service.Name != "" {
		fields[FieldApp] = cfg.Service.Name
	}
	if cfg.Service.Version != "" {
		fields[FieldVersion] = cfg.Service.Version
	}
	if cfg.Service.Commit != "" {
		fields[FieldCommit] = cfg.Service.Commit
	}
	if cfg.Service.Build != "" {
		fields[FieldBuild] = cfg.Service.Build
	}
	if cfg.Service.Deployment != "" {
		fields[FieldDeployment] = cfg.Service.Deployment
	}

	return fields
}
