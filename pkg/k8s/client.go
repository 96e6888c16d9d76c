// Package k8s applies new images to Deployments and waits for rollouts.
package k8s

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

const rolloutPollInterval = 3 * time.Second

// Client wraps the Kubernetes clientset with deployment operations
type Client struct {
	clientset kubernetes.Interface
}

// NewClient creates a new Kubernetes client. In-cluster config is tried
// first, falling back to the given kubeconfig path (or ~/.kube/config).
func NewClient(kubeconfigPath string) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfigPath == "" {
			if home := homedir.HomeDir(); home != "" {
				kubeconfigPath = filepath.Join(home, ".kube", "config")
			}
		}

		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

// NewWithClientset wraps an existing clientset, used by tests
func NewWithClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// HealthCheck checks if the Kubernetes cluster is accessible
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to Kubernetes cluster: %w", err)
	}
	return nil
}

// SetDeploymentImage updates every container of the named Deployment to the
// given image
func (c *Client) SetDeploymentImage(ctx context.Context, namespace, name, image string) error {
	deployments := c.clientset.AppsV1().Deployments(namespace)

	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get deployment %s: %w", name, err)
	}

	for i := range dep.Spec.Template.Spec.Containers {
		dep.Spec.Template.Spec.Containers[i].Image = image
	}

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update deployment %s: %w", name, err)
	}
	return nil
}

// WaitForRollout polls the Deployment until the rollout converges or the
// timeout budget is spent. Exceeding the budget returns (false, nil): the
// deployment may still converge afterward, so it is not an error.
func (c *Client) WaitForRollout(ctx context.Context, namespace, name string, timeout time.Duration) (bool, error) {
	deployments := c.clientset.AppsV1().Deployments(namespace)

	err := wait.PollUntilContextTimeout(ctx, rolloutPollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}

			if dep.Status.ObservedGeneration < dep.Generation {
				return false, nil
			}

			replicas := int32(1)
			if dep.Spec.Replicas != nil {
				replicas = *dep.Spec.Replicas
			}
			return dep.Status.UpdatedReplicas >= replicas &&
				dep.Status.AvailableReplicas >= replicas, nil
		})
	if err != nil {
		if wait.Interrupted(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to watch rollout of %s: %w", name, err)
	}
	return true, nil
}
