// Package xgrpc holds gRPC helpers shared by every service in this repo
// that isn't tied to one specific RPC surface: method-name parsing and
// request/response access logging.
package xgrpc

import (
	"fmt"
	"strings"
)

// ParseFullMethod parses a full method name into its service and method
// components.
//
// For example, the full method name "/bifrost.telemetry.Telemetry/Snapshot"
// parses into "bifrost.telemetry.Telemetry" and "Snapshot".
func ParseFullMethod(fullMethod string) (string, string, error) {
	if !strings.HasPrefix(fullMethod, "/") {
		return "", "", fmt.Errorf("method name must be in format `/package.service/method`")
	}

	name := fullMethod[1:]
	pos := strings.LastIndex(name, "/")
	if pos < 0 {
		return "", "", fmt.Errorf("method name must be in format `/package.service/method`")
	}

	service, method := name[:pos], name[pos+1:]
	return service, method, nil
}
