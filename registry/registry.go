package registry

import (
	"context"
	"errors"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoInstances is returned by Discover when no healthy instance exists.
var ErrNoInstances = errors.New("no healthy instances")

// Instance describes one running copy of this service.
type Instance struct {
	// ID is unique per instance, e.g. name-host-port.
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Meta    map[string]string
}

// ServiceRegistry defines the interface for service registration and discovery.
type ServiceRegistry interface {
	// Register announces an instance together with its health check.
	Register(ctx context.Context, instance Instance, check *consulapi.AgentServiceCheck) error

	// Deregister removes an instance using its unique ID.
	Deregister(ctx context.Context, id string) error

	// Discover finds healthy instances of a service by name and optional tag.
	// Returns a list of "host:port" strings.
	Discover(ctx context.Context, name, tag string) ([]string, error)

	// List maps every registered service name to its tags.
	List(ctx context.Context) (map[string][]string, error)
}
