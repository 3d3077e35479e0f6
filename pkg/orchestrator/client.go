// Package orchestrator materializes investigations as Kubernetes Jobs and
// exposes the narrow slice of cluster state the control plane needs: job
// lifecycle, job status, and worker pod logs. The control plane keeps no
// durable state of its own; the cluster is the source of truth.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/ufflow/oats/pkg/config"
)

var (
	// ErrJobNotFound is returned when the named job no longer exists,
	// typically because its TTL expired or it was cancelled.
	ErrJobNotFound = errors.New("investigation job not found")

	// ErrNoWorkerPod is returned when the job exists but its pod has not
	// been scheduled yet. Callers poll until the pod appears.
	ErrNoWorkerPod = errors.New("no worker pod for job yet")
)

// Client talks to one cluster. It is safe for concurrent use.
type Client struct {
	clientset kubernetes.Interface
	cfg       config.OrchestratorConfig
}

// NewClient builds a client from the ambient credentials: an explicit
// kubeconfig path wins, then in-cluster service account credentials,
// then the default kubeconfig location.
func NewClient(cfg config.OrchestratorConfig) (*Client, error) {
	restCfg, err := resolveRESTConfig(cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("resolve kubernetes credentials: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return &Client{clientset: clientset, cfg: cfg}, nil
}

// NewWithClientset wires a pre-built clientset. Tests pass the fake.
func NewWithClientset(clientset kubernetes.Interface, cfg config.OrchestratorConfig) *Client {
	return &Client{clientset: clientset, cfg: cfg}
}

func resolveRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if restCfg, err := rest.InClusterConfig(); err == nil {
		return restCfg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("not in cluster and no home directory for kubeconfig: %w", err)
	}
	return clientcmd.BuildConfigFromFlags("", filepath.Join(home, ".kube", "config"))
}

// Ping verifies the API server answers. Discovery is the cheapest
// authenticated round trip.
func (c *Client) Ping(_ context.Context) error {
	if _, err := c.clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("kubernetes api unreachable: %w", err)
	}
	return nil
}
