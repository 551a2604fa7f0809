package registry

import (
	"context"
	"fmt"
	"sort"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

type consulRegistry struct {
	client *consulapi.Client
	logger *zap.Logger
}

// Ensure consulRegistry implements ServiceRegistry
var _ ServiceRegistry = (*consulRegistry)(nil)

// NewConsulRegistry connects to the Consul agent at address and checks that
// it answers.
func NewConsulRegistry(address string, logger *zap.Logger) (ServiceRegistry, error) {
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = address // Use address from config

	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	logger = logger.Named("consul")
	// Ping the agent so a bad address fails at startup, not on first use
	if _, err := client.Agent().NodeName(); err != nil {
		return nil, fmt.Errorf("cannot connect to consul agent at %s: %w", address, err)
	}
	logger.Info("Connected to Consul agent", zap.String("address", address))

	return &consulRegistry{client: client, logger: logger}, nil
}

func (r *consulRegistry) Register(ctx context.Context, instance Instance, check *consulapi.AgentServiceCheck) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      instance.ID,      // Unique ID for this service instance
		Name:    instance.Name,    // Service name (e.g., "acronym-center")
		Tags:    instance.Tags,    // Optional tags
		Port:    instance.Port,    // Service port
		Address: instance.Address, // Service IP address or hostname
		Meta:    instance.Meta,
		Check:   check, // Health check configuration
	}

	opts := consulapi.ServiceRegisterOpts{}.WithContext(ctx)
	if err := r.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		return fmt.Errorf("failed to register service '%s': %w", instance.Name, err)
	}
	r.logger.Info("Registered service",
		zap.String("service_id", instance.ID),
		zap.String("service_name", instance.Name),
		zap.String("address", instance.Address),
		zap.Int("port", instance.Port))
	return nil
}

func (r *consulRegistry) Deregister(ctx context.Context, id string) error {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	if err := r.client.Agent().ServiceDeregisterOpts(id, q); err != nil {
		return fmt.Errorf("failed to deregister service '%s': %w", id, err)
	}
	r.logger.Info("Deregistered service", zap.String("service_id", id))
	return nil
}

// Discover returns only instances whose checks pass.
func (r *consulRegistry) Discover(ctx context.Context, name, tag string) ([]string, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	instances, _, err := r.client.Health().Service(name, tag, true, q) // passingOnly
	if err != nil {
		return nil, fmt.Errorf("failed to discover service '%s': %w", name, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("service '%s': %w", name, ErrNoInstances)
	}

	addrs := make([]string, 0, len(instances))
	for _, inst := range instances {
		// Prefer Service.Address, fallback to Node.Address
		addr := inst.Service.Address
		if addr == "" && inst.Node != nil {
			addr = inst.Node.Address
		}
		addrs = append(addrs, fmt.Sprintf("%s:%d", addr, inst.Service.Port))
	}
	r.logger.Debug("Discovered service instances",
		zap.String("service_name", name),
		zap.String("tag", tag),
		zap.Strings("addresses", addrs))
	return addrs, nil
}

func (r *consulRegistry) List(ctx context.Context) (map[string][]string, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	services, _, err := r.client.Catalog().Services(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list services from consul: %w", err)
	}
	for _, tags := range services {
		sort.Strings(tags) // Consul returns tags in registration order
	}
	return services, nil
}

// CreateHTTPCheck creates a Consul HTTP health check that hits
// http://serviceHost:servicePort/checkPath.
func CreateHTTPCheck(serviceID, serviceHost string, servicePort int, checkPath string, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_http", serviceID),
		Name:                           fmt.Sprintf("HTTP Check for %s", serviceID),
		HTTP:                           fmt.Sprintf("http://%s:%d%s", serviceHost, servicePort, checkPath),
		Method:                         "GET",
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}

// CreateGRPCCheck creates a Consul check against the gRPC health service.
func CreateGRPCCheck(serviceID, grpcTarget string, interval, timeout string, useTLS bool) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_grpc", serviceID),
		Name:                           fmt.Sprintf("gRPC Check for %s", serviceID),
		GRPC:                           grpcTarget,
		GRPCUseTLS:                     useTLS,
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}
