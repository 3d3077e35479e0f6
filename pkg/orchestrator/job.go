package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/ufflow/oats/pkg/config"
)

const (
	appLabel            = "oats-worker"
	investigationLabel  = "oats.ufflow.io/investigation-id"
	workerContainerName = "worker"
)

// ReasonDeadlineExceeded is the job failure reason Kubernetes sets when
// activeDeadlineSeconds fires. The watcher maps it to the timed-out state.
const ReasonDeadlineExceeded = "DeadlineExceeded"

// CreateJobRequest carries everything one worker job needs.
type CreateJobRequest struct {
	InvestigationID string
	JobName         string
	Namespace       string
	Goal            string
	TurnBudget      int
	RunbookURL      string
}

// JobPhase is the coarse lifecycle of a worker job.
type JobPhase string

const (
	JobPending   JobPhase = "pending"
	JobActive    JobPhase = "active"
	JobSucceeded JobPhase = "succeeded"
	JobFailed    JobPhase = "failed"
)

// JobStatus reports where a job is in its lifecycle. Reason carries the
// Kubernetes failure reason when Phase is failed.
type JobStatus struct {
	Phase  JobPhase
	Reason string
}

// CreateInvestigationJob submits a worker job for one investigation.
func (c *Client) CreateInvestigationJob(ctx context.Context, req CreateJobRequest) error {
	job := c.buildJob(req)
	_, err := c.clientset.BatchV1().Jobs(req.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("create job %s/%s: %w", req.Namespace, req.JobName, err)
	}
	slog.Info("Worker job created",
		"job", req.JobName,
		"namespace", req.Namespace,
		"investigation_id", req.InvestigationID)
	return nil
}

func (c *Client) buildJob(req CreateJobRequest) *batchv1.Job {
	labels := map[string]string{
		"app":              appLabel,
		investigationLabel: req.InvestigationID,
	}

	env := []corev1.EnvVar{
		{Name: config.EnvGoal, Value: req.Goal},
		{Name: config.EnvMaxTurns, Value: strconv.Itoa(req.TurnBudget)},
	}
	if req.RunbookURL != "" {
		env = append(env, corev1.EnvVar{Name: config.EnvRunbookURL, Value: req.RunbookURL})
	}
	// Fleet-wide pass-through knobs, sorted for a stable job spec.
	keys := make([]string, 0, len(c.cfg.WorkerEnv))
	for k := range c.cfg.WorkerEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: c.cfg.WorkerEnv[k]})
	}

	// One attempt, never restarted: a crashed worker is a failed
	// investigation, not something to retry blind.
	backoffLimit := int32(0)
	ttl := c.cfg.JobTTLSeconds
	deadline := c.cfg.HardDeadlineSeconds
	// Missing credentials surface as a worker error event instead of a
	// CreateContainerConfigError nobody can stream.
	secretOptional := true

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.JobName,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &ttl,
			ActiveDeadlineSeconds:   &deadline,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: c.cfg.ServiceAccount,
					RestartPolicy:      corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:  workerContainerName,
						Image: c.cfg.WorkerImage,
						Env:   env,
						EnvFrom: []corev1.EnvFromSource{{
							SecretRef: &corev1.SecretEnvSource{
								LocalObjectReference: corev1.LocalObjectReference{
									Name: c.cfg.OracleSecret,
								},
								Optional: &secretOptional,
							},
						}},
					}},
				},
			},
		},
	}
}

// JobStatus reports the job's current phase.
func (c *Client) JobStatus(ctx context.Context, namespace, name string) (*JobStatus, error) {
	job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s/%s: %w", namespace, name, err)
	}
	return statusFromJob(job), nil
}

func statusFromJob(job *batchv1.Job) *JobStatus {
	// Conditions are authoritative once the job controller settles.
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return &JobStatus{Phase: JobSucceeded}
		case batchv1.JobFailed:
			return &JobStatus{Phase: JobFailed, Reason: cond.Reason}
		}
	}
	switch {
	case job.Status.Succeeded > 0:
		return &JobStatus{Phase: JobSucceeded}
	case job.Status.Active > 0:
		return &JobStatus{Phase: JobActive}
	case job.Status.Failed > 0:
		return &JobStatus{Phase: JobFailed}
	default:
		return &JobStatus{Phase: JobPending}
	}
}

// DeleteJob removes a job and its pods. Deleting a job that is already
// gone is not an error; cancellation is idempotent all the way down.
func (c *Client) DeleteJob(ctx context.Context, namespace, name string) error {
	policy := metav1.DeletePropagationForeground
	err := c.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete job %s/%s: %w", namespace, name, err)
	}
	slog.Info("Worker job deleted", "job", name, "namespace", namespace)
	return nil
}
