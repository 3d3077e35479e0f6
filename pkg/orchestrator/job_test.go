package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/ufflow/oats/pkg/config"
)

func testOrchestratorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		Namespace:           "oats",
		WorkerImage:         "ghcr.io/ufflow/oats-worker:test",
		ServiceAccount:      "oats-worker",
		OracleSecret:        "oracle-credentials",
		JobTTLSeconds:       300,
		HardDeadlineSeconds: 1800,
	}
}

func envValue(env []corev1.EnvVar, name string) (string, bool) {
	for _, e := range env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

func TestCreateInvestigationJob_BuildsSingleAttemptJob(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	client := NewWithClientset(clientset, testOrchestratorConfig())

	req := CreateJobRequest{
		InvestigationID: "2f1a9c3e-8b4d-4f6a-9c1e-5d7b3a2f1e0c",
		JobName:         "investigation-2f1a9c3e",
		Namespace:       "oats",
		Goal:            "api latency spiked after the 14:00 deploy",
		TurnBudget:      15,
	}
	require.NoError(t, client.CreateInvestigationJob(context.Background(), req))

	job, err := clientset.BatchV1().Jobs("oats").Get(context.Background(), req.JobName, metav1.GetOptions{})
	require.NoError(t, err)

	assert.Equal(t, "oats-worker", job.Labels["app"])
	assert.Equal(t, req.InvestigationID, job.Labels["oats.ufflow.io/investigation-id"])

	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.Equal(t, int32(300), *job.Spec.TTLSecondsAfterFinished)
	require.NotNil(t, job.Spec.ActiveDeadlineSeconds)
	assert.Equal(t, int64(1800), *job.Spec.ActiveDeadlineSeconds)

	podSpec := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, podSpec.RestartPolicy)
	assert.Equal(t, "oats-worker", podSpec.ServiceAccountName)
	assert.Equal(t, job.Labels, job.Spec.Template.Labels)
	require.Len(t, podSpec.Containers, 1)

	container := podSpec.Containers[0]
	assert.Equal(t, "worker", container.Name)
	assert.Equal(t, "ghcr.io/ufflow/oats-worker:test", container.Image)

	goal, ok := envValue(container.Env, config.EnvGoal)
	require.True(t, ok)
	assert.Equal(t, req.Goal, goal)
	turns, ok := envValue(container.Env, config.EnvMaxTurns)
	require.True(t, ok)
	assert.Equal(t, "15", turns)
	_, ok = envValue(container.Env, config.EnvRunbookURL)
	assert.False(t, ok, "no runbook requested, no env var")

	require.Len(t, container.EnvFrom, 1)
	require.NotNil(t, container.EnvFrom[0].SecretRef)
	assert.Equal(t, "oracle-credentials", container.EnvFrom[0].SecretRef.Name)
}

func TestCreateInvestigationJob_PassesWorkerEnvSorted(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.WorkerEnv = map[string]string{
		"UFFLOW_LLM_PROVIDER": "anthropic",
		"UFFLOW_LLM_MODEL":    "claude-3-5-sonnet-20241022",
	}
	clientset := fake.NewSimpleClientset()
	client := NewWithClientset(clientset, cfg)

	req := CreateJobRequest{
		InvestigationID: "id",
		JobName:         "investigation-abcd1234",
		Namespace:       "oats",
		Goal:            "goal",
		TurnBudget:      3,
		RunbookURL:      "https://github.com/ufflow/runbooks/blob/main/latency.md",
	}
	require.NoError(t, client.CreateInvestigationJob(context.Background(), req))

	job, err := clientset.BatchV1().Jobs("oats").Get(context.Background(), req.JobName, metav1.GetOptions{})
	require.NoError(t, err)

	env := job.Spec.Template.Spec.Containers[0].Env
	names := make([]string, 0, len(env))
	for _, e := range env {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		config.EnvGoal,
		config.EnvMaxTurns,
		config.EnvRunbookURL,
		"UFFLOW_LLM_MODEL",
		"UFFLOW_LLM_PROVIDER",
	}, names)
}

func TestJobStatus_PendingBeforeAnyPodRuns(t *testing.T) {
	clientset := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "investigation-aa11bb22", Namespace: "oats"},
	})
	client := NewWithClientset(clientset, testOrchestratorConfig())

	status, err := client.JobStatus(context.Background(), "oats", "investigation-aa11bb22")
	require.NoError(t, err)
	assert.Equal(t, JobPending, status.Phase)
}

func TestJobStatus_ActiveWhileWorkerRuns(t *testing.T) {
	clientset := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "investigation-aa11bb22", Namespace: "oats"},
		Status:     batchv1.JobStatus{Active: 1},
	})
	client := NewWithClientset(clientset, testOrchestratorConfig())

	status, err := client.JobStatus(context.Background(), "oats", "investigation-aa11bb22")
	require.NoError(t, err)
	assert.Equal(t, JobActive, status.Phase)
}

func TestJobStatus_SucceededFromCondition(t *testing.T) {
	clientset := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "investigation-aa11bb22", Namespace: "oats"},
		Status: batchv1.JobStatus{
			Succeeded: 1,
			Conditions: []batchv1.JobCondition{
				{Type: batchv1.JobComplete, Status: corev1.ConditionTrue},
			},
		},
	})
	client := NewWithClientset(clientset, testOrchestratorConfig())

	status, err := client.JobStatus(context.Background(), "oats", "investigation-aa11bb22")
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, status.Phase)
}

func TestJobStatus_FailedCarriesDeadlineReason(t *testing.T) {
	clientset := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "investigation-aa11bb22", Namespace: "oats"},
		Status: batchv1.JobStatus{
			Failed: 1,
			Conditions: []batchv1.JobCondition{
				{Type: batchv1.JobFailed, Status: corev1.ConditionTrue, Reason: ReasonDeadlineExceeded},
			},
		},
	})
	client := NewWithClientset(clientset, testOrchestratorConfig())

	status, err := client.JobStatus(context.Background(), "oats", "investigation-aa11bb22")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, status.Phase)
	assert.Equal(t, ReasonDeadlineExceeded, status.Reason)
}

func TestJobStatus_MissingJobIsErrJobNotFound(t *testing.T) {
	client := NewWithClientset(fake.NewSimpleClientset(), testOrchestratorConfig())

	_, err := client.JobStatus(context.Background(), "oats", "investigation-gone")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJob_IdempotentWhenAlreadyGone(t *testing.T) {
	clientset := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "investigation-aa11bb22", Namespace: "oats"},
	})
	client := NewWithClientset(clientset, testOrchestratorConfig())

	require.NoError(t, client.DeleteJob(context.Background(), "oats", "investigation-aa11bb22"))
	assert.NoError(t, client.DeleteJob(context.Background(), "oats", "investigation-aa11bb22"),
		"second delete must be a no-op")
}
