//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const baseDeployment = `---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: test-nginx
spec:
  replicas: 1
  selector:
    matchLabels:
      app: test-nginx
  template:
    metadata:
      labels:
        app: test-nginx
    spec:
      containers:
      - name: nginx
        image: nginx:latest
`

func TestEnsureUpdatesExistingResources(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	initial := strings.ReplaceAll(baseDeployment, "nginx:latest", "nginx:1.21")
	updated := strings.ReplaceAll(baseDeployment, "nginx:latest", "nginx:1.25")

	initialPath := filepath.Join(tmp, "initial.yaml")
	updatedPath := filepath.Join(tmp, "updated.yaml")
	_ = os.WriteFile(initialPath, []byte(initial), 0o644)
	_ = os.WriteFile(updatedPath, []byte(updated), 0o644)

	_, _ = exec.Command("katomik", "ensure", "-f", initialPath, "--workspace", tmp).CombinedOutput()
	_, _ = exec.Command("katomik", "ensure", "-f", updatedPath, "--workspace", tmp).CombinedOutput()

	cfg, _ := kubeConfig()
	client, _ := kubernetes.NewForConfig(cfg)

	deploy, err := client.AppsV1().Deployments("default").Get(ctx, "test-nginx", metav1.GetOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "nginx:1.25", deploy.Spec.Template.Spec.Containers[0].Image)
}

func TestEnsureEmptyManifestIsANoop(t *testing.T) {
	tmp := t.TempDir()
	noopPath := filepath.Join(tmp, "noop.yaml")
	_ = os.WriteFile(noopPath, []byte("---"), 0o644)

	out, err := exec.Command("katomik", "ensure", "-f", noopPath, "--workspace", tmp).CombinedOutput()
	t.Logf("output:\n%s", string(out))
	assert.NoError(t, err)
}

func TestEnsureMultipleResourcesOfSameKind(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	multi := baseDeployment + "\n" + strings.ReplaceAll(baseDeployment, "test-nginx", "test-nginx-2")
	multiPath := filepath.Join(tmp, "multi.yaml")
	_ = os.WriteFile(multiPath, []byte(multi), 0o644)

	_, err := exec.Command("katomik", "ensure", "-f", multiPath, "--workspace", tmp).CombinedOutput()
	assert.NoError(t, err)

	cfg, _ := kubeConfig()
	client, _ := kubernetes.NewForConfig(cfg)

	_, err = client.AppsV1().Deployments("default").Get(ctx, "test-nginx", metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = client.AppsV1().Deployments("default").Get(ctx, "test-nginx-2", metav1.GetOptions{})
	assert.NoError(t, err)
}

// TestEnsureStopsOnFirstFailureLeavingLaterItemsUntouched exercises the
// framework's per-item failure isolation: unlike the one-shot atomic apply
// this CLI replaces, a later item never starts once an earlier item (linked
// by manifest order) fails its readiness wait, and an earlier item's already
// applied change is not rolled back.
func TestEnsureStopsOnFirstFailureLeavingLaterItemsUntouched(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	good := baseDeployment + "\n" + strings.ReplaceAll(baseDeployment, "test-nginx", "test-nginx-2")
	bad := strings.ReplaceAll(good, "nginx:latest", "nginx:nonexistent")

	goodPath := filepath.Join(tmp, "good.yaml")
	badPath := filepath.Join(tmp, "bad.yaml")
	_ = os.WriteFile(goodPath, []byte(good), 0o644)
	_ = os.WriteFile(badPath, []byte(bad), 0o644)

	_, _ = exec.Command("katomik", "ensure", "-f", goodPath, "--workspace", tmp).CombinedOutput()
	out, err := exec.Command("katomik", "ensure", "-f", badPath, "--workspace", tmp, "--timeout=10s").CombinedOutput()
	t.Logf("output:\n%s", string(out))
	assert.Error(t, err)

	cfg, _ := kubeConfig()
	client, _ := kubernetes.NewForConfig(cfg)

	// The first item in manifest order was patched before its readiness wait
	// timed out: the patch itself is not undone.
	first, err := client.AppsV1().Deployments("default").Get(ctx, "test-nginx", metav1.GetOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "nginx:nonexistent", first.Spec.Template.Spec.Containers[0].Image)

	// The second item, ordered after the first, never started.
	second, err := client.AppsV1().Deployments("default").Get(ctx, "test-nginx-2", metav1.GetOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "nginx:latest", second.Spec.Template.Spec.Containers[0].Image)
}

func TestEnsureFailureDoesNotRemoveUnrelatedResources(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	good := baseDeployment + "\n" + strings.ReplaceAll(baseDeployment, "test-nginx", "test-nginx-2")
	bad := strings.ReplaceAll(baseDeployment, "nginx:latest", "nginx:nonexistent")

	goodPath := filepath.Join(tmp, "good.yaml")
	badPath := filepath.Join(tmp, "bad.yaml")
	_ = os.WriteFile(goodPath, []byte(good), 0o644)
	_ = os.WriteFile(badPath, []byte(bad), 0o644)

	_, _ = exec.Command("katomik", "ensure", "-f", goodPath, "--workspace", tmp).CombinedOutput()
	_, err := exec.Command("katomik", "ensure", "-f", badPath, "--workspace", tmp, "--timeout=10s").CombinedOutput()
	assert.Error(t, err)

	cfg, _ := kubeConfig()
	client, _ := kubernetes.NewForConfig(cfg)

	// test-nginx-2 was never part of the failing run's manifest set, so it
	// is untouched regardless of the other item's outcome.
	_, err = client.AppsV1().Deployments("default").Get(ctx, "test-nginx-2", metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestEnsureWithCustomNamespace(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	ns := "apptomic-test"
	_ = exec.Command("kubectl", "create", "ns", ns).Run()

	deploy := strings.ReplaceAll(baseDeployment, "test-nginx", "custom-ns-nginx")
	deployPath := filepath.Join(tmp, "custom.yaml")
	_ = os.WriteFile(deployPath, []byte(deploy), 0o644)

	_, err := exec.Command("katomik", "ensure", "-f", deployPath, "--namespace", ns, "--workspace", tmp).CombinedOutput()
	assert.NoError(t, err)

	cfg, _ := kubeConfig()
	client, _ := kubernetes.NewForConfig(cfg)

	_, err = client.AppsV1().Deployments(ns).Get(ctx, "custom-ns-nginx", metav1.GetOptions{})
	assert.NoError(t, err)
}
