package orchestrator

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// StreamLogs opens the worker pod's log stream for a job. With follow the
// stream stays open until the worker exits; without it the call returns
// whatever the orchestrator has retained, which is how terminal
// investigations get replayed.
func (c *Client) StreamLogs(ctx context.Context, namespace, jobName string, follow bool) (io.ReadCloser, error) {
	pod, err := c.workerPod(ctx, namespace, jobName)
	if err != nil {
		return nil, err
	}
	opts := &corev1.PodLogOptions{
		Container: workerContainerName,
		Follow:    follow,
	}
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod.Name, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open log stream for pod %s/%s: %w", namespace, pod.Name, err)
	}
	return stream, nil
}

// workerPod resolves the pod the job controller created. The job-name
// label is stamped by Kubernetes itself, so it is always present.
func (c *Client) workerPod(ctx context.Context, namespace, jobName string) (*corev1.Pod, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods for job %s/%s: %w", namespace, jobName, err)
	}
	if len(pods.Items) == 0 {
		return nil, ErrNoWorkerPod
	}
	// Newest pod wins on the off chance the controller replaced one.
	pod := pods.Items[0]
	for _, p := range pods.Items[1:] {
		if p.CreationTimestamp.After(pod.CreationTimestamp.Time) {
			pod = p
		}
	}
	return &pod, nil
}
