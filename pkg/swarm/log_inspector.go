package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/strands/pkg/kube"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// podSource is the slice of the cluster API the inspector needs.
type podSource interface {
	ListPods(ctx context.Context, namespace, selector string) ([]kube.PodInfo, error)
	PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) ([]string, error)
	RecentEvents(ctx context.Context, namespace string, limit int) ([]kube.EventInfo, error)
}

// restartLoopThreshold is the restart count at which a pod counts as
// crash looping.
const restartLoopThreshold = 5

var (
	oomPattern     = regexp.MustCompile(`(?i)OOMKilled|out of memory`)
	panicPattern   = regexp.MustCompile(`(?i)panic:|fatal error:`)
	errorPattern   = regexp.MustCompile(`(?i)\blevel=error\b|\bERROR\b|\bException\b`)
	connectPattern = regexp.MustCompile(`(?i)connection refused|connection reset|i/o timeout`)
)

// LogInspector reads pod state, container logs, and warning events for the
// incident service.
type LogInspector struct {
	source    podSource
	logger    *slog.Logger
	tailLines int64
	maxPods   int
}

// NewLogInspector creates the inspector.
func NewLogInspector(source podSource, logger *slog.Logger) *LogInspector {
	return &LogInspector{
		source:    source,
		logger:    logger,
		tailLines: 200,
		maxPods:   5,
	}
}

func (l *LogInspector) ID() string { return "log-inspector" }

type logFindings struct {
	oomLines     int
	panicLines   int
	errorLines   int
	connectLines int
	restartLoops int
	backoffs     int
	warnings     int
}

// Investigate scans the service's pods. Log fetch failures for individual
// pods are tolerated; listing pods failing is fatal for this specialist.
func (l *LogInspector) Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error) {
	var res models.SpecialistResult
	namespace := clusterNamespace(cluster)
	selector := "app=" + cluster.Service

	pods, err := l.source.ListPods(ctx, namespace, selector)
	if err != nil {
		return res, err
	}

	var f logFindings
	inspected := 0
	for _, pod := range pods {
		if inspected >= l.maxPods {
			break
		}
		inspected++
		if pod.Restarts >= restartLoopThreshold {
			f.restartLoops++
			res.Evidence = append(res.Evidence, models.EvidenceItem{
				Kind:        models.EvidenceEvent,
				Source:      pod.Name,
				Description: fmt.Sprintf("pod %s restarted %d times", pod.Name, pod.Restarts),
				Quality:     0.85,
			})
		}
		lines, err := l.source.PodLogs(ctx, namespace, pod.Name, "", l.tailLines)
		if err != nil {
			l.logger.Debug("Log fetch failed", "pod", pod.Name, "error", err)
			continue
		}
		for _, line := range lines {
			switch {
			case oomPattern.MatchString(line):
				f.oomLines++
			case panicPattern.MatchString(line):
				f.panicLines++
			case connectPattern.MatchString(line):
				f.connectLines++
			case errorPattern.MatchString(line):
				f.errorLines++
			}
		}
	}

	if events, err := l.source.RecentEvents(ctx, namespace, 50); err == nil {
		for _, ev := range events {
			if ev.Type != "Warning" {
				continue
			}
			f.warnings++
			if strings.Contains(ev.Reason, "BackOff") {
				f.backoffs++
				res.Evidence = append(res.Evidence, models.EvidenceItem{
					Kind:        models.EvidenceEvent,
					Source:      ev.Object,
					Description: fmt.Sprintf("%s: %s", ev.Reason, ev.Message),
					Quality:     0.8,
					Timestamp:   ev.LastSeen,
				})
			}
		}
	} else {
		l.logger.Debug("Event fetch failed", "namespace", namespace, "error", err)
	}

	l.appendLogEvidence(&res, f)
	hypothesis, confidence, actions := summarizeFindings(cluster.Service, f)
	res.Hypothesis = hypothesis
	res.Confidence = confidence
	res.SuggestedActions = actions
	return res, nil
}

func (l *LogInspector) appendLogEvidence(res *models.SpecialistResult, f logFindings) {
	add := func(count int, quality float64, format string) {
		if count == 0 {
			return
		}
		res.Evidence = append(res.Evidence, models.EvidenceItem{
			Kind:        models.EvidenceLog,
			Source:      l.ID(),
			Description: fmt.Sprintf(format, count),
			Quality:     quality,
		})
	}
	add(f.oomLines, 0.95, "%d OOMKilled log lines")
	add(f.panicLines, 0.9, "%d panic log lines")
	add(f.connectLines, 0.6, "%d connection failure log lines")
	add(f.errorLines, 0.7, "%d error log lines")
}

// summarizeFindings ranks what the logs show into one hypothesis.
func summarizeFindings(service string, f logFindings) (string, float64, []string) {
	switch {
	case f.oomLines > 0:
		return fmt.Sprintf("memory exhaustion (OOMKilled) in %s", service), 0.9,
			[]string{"Raise memory limits for " + service, "Inspect heap usage of the latest release"}
	case f.restartLoops > 0 || f.backoffs > 0:
		return fmt.Sprintf("restart loop in %s", service), 0.85,
			[]string{"Describe the crash-looping pods", "Roll back the last deployment of " + service}
	case f.panicLines > 0:
		return fmt.Sprintf("crash from panic in %s", service), 0.8,
			[]string{"Capture the panic stack trace", "Roll back the last deployment of " + service}
	case f.errorLines >= 10:
		return fmt.Sprintf("error burst in %s logs (%d lines)", service, f.errorLines), 0.7,
			[]string{"Check recent deployments for " + service}
	case f.connectLines > 0:
		return fmt.Sprintf("downstream connectivity failures from %s", service), 0.6,
			[]string{"Check network policies and downstream endpoints of " + service}
	case f.errorLines > 0:
		return fmt.Sprintf("sporadic errors in %s logs", service), 0.4, nil
	default:
		return "logs show no failure signature for " + service, 0.2, nil
	}
}

// clusterNamespace picks the namespace from member labels.
func clusterNamespace(cluster models.AlertCluster) string {
	for _, m := range cluster.Members {
		if ns := m.Labels["namespace"]; ns != "" {
			return ns
		}
	}
	return "default"
}

var _ Specialist = (*LogInspector)(nil)
