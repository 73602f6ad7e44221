package models

import (
	"fmt"
	"time"
)

// WaitingForInstance is reported as lifecycle state while the autoscaling group has no instance yet
const WaitingForInstance = "Waiting for EC2 instance..."

// LifecycleInService is the autoscaling lifecycle state of a healthy, serving instance
const LifecycleInService = "InService"

// InstanceState describes the compute instance backing the server
type InstanceState struct {
	InstanceID     string `json:"instance_id,omitempty"`
	LifecycleState string `json:"lifecycle_state"`
	PublicIP       string `json:"public_ip,omitempty"` // empty until the instance has an address
	Waiting        bool   `json:"waiting"`
}

// ServiceCounts holds the task counts of the container service
type ServiceCounts struct {
	Desired int32  `json:"desired"`
	Pending int32  `json:"pending"`
	Running int32  `json:"running"`
	Status  string `json:"status,omitempty"` // ACTIVE, DRAINING, INACTIVE
}

// String renders the counts the way players are told to read them
func (s ServiceCounts) String() string {
	return fmt.Sprintf("Pending: %d, Running: %d", s.Pending, s.Running)
}

// ModFile is a single object stored under the mods prefix
type ModFile struct {
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// ModListing groups stored mods by where they have to be installed.
// Other holds keys directly under mods/ for deployments without a
// server/client split.
type ModListing struct {
	Server []ModFile `json:"server"`
	Client []ModFile `json:"client"`
	Other  []ModFile `json:"other"`
}

// Empty reports whether no mods are stored at all
func (m ModListing) Empty() bool {
	return len(m.Server) == 0 && len(m.Client) == 0 && len(m.Other) == 0
}

// Partitioned reports whether the store uses the server/client layout
func (m ModListing) Partitioned() bool {
	return len(m.Server) > 0 || len(m.Client) > 0
}

// Names returns the display names of files
func Names(files []ModFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

// ServerStatusReport is the snapshot returned by the start endpoint.
// It is derived on every request and never persisted; the three reads
// it is made of are independent point-in-time views.
type ServerStatusReport struct {
	DNSName     string        `json:"dns_name"`
	Instance    InstanceState `json:"instance"`
	Service     ServiceCounts `json:"service"`
	Mods        ModListing    `json:"mods"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Ready reports whether players can connect
func (r *ServerStatusReport) Ready() bool {
	return r.Instance.LifecycleState == LifecycleInService && r.Service.Running > 0 && r.Service.Pending == 0
}
