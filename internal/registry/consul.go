// Package registry registers the dashboard in Consul and keeps its TTL
// health check passing while the process is up.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/rs/xid"
)

// Config holds Consul registration settings.
type Config struct {
	Addr        string        // Consul agent address; empty disables registration
	ServiceName string        // default "satdash"
	ServiceHost string        // advertised host
	ServicePort int           // advertised port
	TTL         time.Duration // check TTL (default 10s); heartbeats run at TTL/2
	Tags        []string
}

// agent is the subset of the Consul agent API used here.
type agent interface {
	ServiceRegister(service *consulapi.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
	UpdateTTL(checkID, output, status string) error
}

// Registry owns one service registration.
type Registry struct {
	agent      agent
	config     Config
	instanceID string
	logger     *slog.Logger
}

// New connects to the Consul agent.
func New(config Config, logger *slog.Logger) (*Registry, error) {
	cc := consulapi.DefaultConfig()
	cc.Address = config.Addr
	client, err := consulapi.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("consul client %s: %w", config.Addr, err)
	}
	return newRegistry(client.Agent(), config, logger), nil
}

func newRegistry(a agent, config Config, logger *slog.Logger) *Registry {
	if config.ServiceName == "" {
		config.ServiceName = "satdash"
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Second
	}
	return &Registry{
		agent:      a,
		config:     config,
		instanceID: config.ServiceName + "-" + xid.New().String(),
		logger:     logger,
	}
}

// InstanceID is the registered service id.
func (r *Registry) InstanceID() string { return r.instanceID }

func (r *Registry) checkID() string { return "service:" + r.instanceID }

// Register adds the service with a TTL check. Consul removes it if the check
// stays critical for a minute.
func (r *Registry) Register() error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.instanceID,
		Name:    r.config.ServiceName,
		Address: r.config.ServiceHost,
		Port:    r.config.ServicePort,
		Tags:    r.config.Tags,
		Check: &consulapi.AgentServiceCheck{
			CheckID:                        r.checkID(),
			TTL:                            r.config.TTL.String(),
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.agent.ServiceRegister(reg); err != nil {
		return fmt.Errorf("consul register %s: %w", r.instanceID, err)
	}
	r.logger.Info("registered in consul",
		"service", r.config.ServiceName,
		"instance_id", r.instanceID,
	)
	return nil
}

// Heartbeat marks the TTL check as passing.
func (r *Registry) Heartbeat() error {
	if err := r.agent.UpdateTTL(r.checkID(), "ok", consulapi.HealthPassing); err != nil {
		return fmt.Errorf("consul ttl %s: %w", r.instanceID, err)
	}
	return nil
}

// Run sends heartbeats every TTL/2 until ctx is cancelled, then deregisters.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.TTL / 2)
	defer ticker.Stop()

	if err := r.Heartbeat(); err != nil {
		r.logger.Warn("consul heartbeat failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			if err := r.Deregister(); err != nil {
				r.logger.Warn("consul deregister failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := r.Heartbeat(); err != nil {
				r.logger.Warn("consul heartbeat failed", "error", err)
			}
		}
	}
}

// Deregister removes the service.
func (r *Registry) Deregister() error {
	if err := r.agent.ServiceDeregister(r.instanceID); err != nil {
		return fmt.Errorf("consul deregister %s: %w", r.instanceID, err)
	}
	r.logger.Info("deregistered from consul", "instance_id", r.instanceID)
	return nil
}
