// Package kube wraps the Kubernetes API for the investigation specialists:
// pod state and restart counts for the graph-context specialist, container
// logs and warning events for the log inspector.
package kube

import (
	"bufio"
	"context"
	"log/slog"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the cluster access settings.
type Config struct {
	// Kubeconfig is the path to a kubeconfig file. Empty means in-cluster
	// config first, then the default kubeconfig location.
	Kubeconfig string `yaml:"kubeconfig"`
}

// PodInfo is the pod state the specialists care about.
type PodInfo struct {
	Name      string
	Namespace string
	Phase     string
	Node      string
	Ready     bool
	Restarts  int32
	StartedAt time.Time
}

// EventInfo is one cluster event, newest first.
type EventInfo struct {
	Type     string
	Reason   string
	Object   string
	Message  string
	Count    int32
	LastSeen time.Time
}

// Client is the shared cluster client. Safe for concurrent use.
type Client struct {
	cs     kubernetes.Interface
	exec   *resilience.Executor
	logger *slog.Logger
}

// NewClient builds a client from in-cluster config, falling back to the
// configured (or default) kubeconfig path.
func NewClient(cfg Config, exec *resilience.Executor, logger *slog.Logger) (*Client, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		path := cfg.Kubeconfig
		if path == "" {
			path = clientcmd.RecommendedHomeFile
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, faults.Wrap(faults.KindUpstreamUnavailable, "kube.NewClient",
				"no usable cluster config", err)
		}
		logger.Info("Using kubeconfig", "path", path)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, "kube.NewClient", "create clientset", err)
	}
	return NewWithClientset(cs, exec, logger), nil
}

// NewWithClientset wraps an existing clientset. Used by tests and by
// callers that manage their own config.
func NewWithClientset(cs kubernetes.Interface, exec *resilience.Executor, logger *slog.Logger) *Client {
	return &Client{cs: cs, exec: exec, logger: logger}
}

// ListPods returns pods in the namespace matching the label selector.
func (c *Client) ListPods(ctx context.Context, namespace, selector string) ([]PodInfo, error) {
	var pods []PodInfo
	err := c.exec.Do(ctx, "kube.ListPods", func(ctx context.Context) error {
		list, err := c.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return err
		}
		pods = make([]PodInfo, 0, len(list.Items))
		for i := range list.Items {
			pods = append(pods, podInfo(&list.Items[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pods, nil
}

// PodLogs returns up to tailLines recent log lines from one container.
// Empty container means the pod's default container.
func (c *Client) PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) ([]string, error) {
	opts := &corev1.PodLogOptions{TailLines: &tailLines}
	if container != "" {
		opts.Container = container
	}
	var lines []string
	err := c.exec.Do(ctx, "kube.PodLogs", func(ctx context.Context) error {
		stream, err := c.cs.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
		if err != nil {
			return err
		}
		defer stream.Close()
		lines = lines[:0]
		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// RecentEvents returns the most recent events in the namespace, newest
// first, capped at limit.
func (c *Client) RecentEvents(ctx context.Context, namespace string, limit int) ([]EventInfo, error) {
	var events []EventInfo
	err := c.exec.Do(ctx, "kube.RecentEvents", func(ctx context.Context) error {
		list, err := c.cs.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		events = make([]EventInfo, 0, len(list.Items))
		for i := range list.Items {
			ev := &list.Items[i]
			events = append(events, EventInfo{
				Type:     ev.Type,
				Reason:   ev.Reason,
				Object:   ev.InvolvedObject.Kind + "/" + ev.InvolvedObject.Name,
				Message:  ev.Message,
				Count:    ev.Count,
				LastSeen: eventTime(ev),
			})
		}
		sort.Slice(events, func(i, j int) bool { return events[i].LastSeen.After(events[j].LastSeen) })
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Snapshot exposes the resilience counters for health reporting.
func (c *Client) Snapshot() resilience.Snapshot {
	return c.exec.Snapshot()
}

func podInfo(pod *corev1.Pod) PodInfo {
	info := PodInfo{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     string(pod.Status.Phase),
		Node:      pod.Spec.NodeName,
	}
	if pod.Status.StartTime != nil {
		info.StartedAt = pod.Status.StartTime.Time
	}
	ready := len(pod.Status.ContainerStatuses) > 0
	for _, cs := range pod.Status.ContainerStatuses {
		info.Restarts += cs.RestartCount
		if !cs.Ready {
			ready = false
		}
	}
	info.Ready = ready
	return info
}

func eventTime(ev *corev1.Event) time.Time {
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp.Time
	}
	if !ev.EventTime.IsZero() {
		return ev.EventTime.Time
	}
	return ev.CreationTimestamp.Time
}
