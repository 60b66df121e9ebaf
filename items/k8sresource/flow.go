package k8sresource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	clientyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/rest"

	"github.com/hashmap-kz/katomik-flow/cmds"
	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/params"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/hashmap-kz/katomik-flow/state"
)

// ReadManifests splits data (one or more YAML or JSON documents) into a
// slice of decoded Kubernetes objects, ignoring empty documents. It is a
// direct port of the teacher's readManifests helper.
func ReadManifests(data []byte) ([]*unstructured.Unstructured, error) {
	var docs []*unstructured.Unstructured
	stream := clientyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)
	for {
		obj := &unstructured.Unstructured{}
		if err := stream.Decode(obj); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(obj.Object) > 0 {
			docs = append(docs, obj)
		}
	}
	return docs, nil
}

// idPattern matches the characters id.ItemID allows; anything else in a
// derived item id is collapsed to an underscore.
var idPattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// itemIDFor derives a stable, valid id.ItemID from a manifest's GVK,
// namespace and name, e.g. "apps_v1_Deployment_default_web".
func itemIDFor(obj *unstructured.Unstructured, n int) id.ItemID {
	gvk := obj.GroupVersionKind()
	parts := []string{gvk.Group, gvk.Version, gvk.Kind, obj.GetNamespace(), obj.GetName()}
	raw := strings.Join(parts, "_")
	raw = idPattern.ReplaceAllString(raw, "_")
	raw = strings.Trim(raw, "_")
	if raw == "" || !idRuneOK(raw[0]) {
		raw = fmt.Sprintf("r%d_%s", n, raw)
	}
	v, err := id.New(raw)
	if err != nil {
		// Collision-proof fallback: n is each manifest's position, so this
		// is always unique even if sanitisation degenerates to "".
		return id.MustNew(fmt.Sprintf("r%d", n))
	}
	return v
}

func idRuneOK(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// NewFlow builds a Flow of one k8sresource Item per manifest, in manifest
// order. Consecutive manifests are linked with sequential Logic edges, so
// the stream executor applies them in file order — preserving the
// teacher's "the plan preserves input order" guarantee — while still
// running their (order-independent) discovery and diffing concurrently.
// restConfig is called once, lazily, from the flow's Seed hook.
func NewFlow(
	flowID id.FlowID, manifests []*unstructured.Unstructured, defaultNamespace string, restConfig func() (*rest.Config, error),
) (*cmds.Flow[Params, State, Diff], error) {
	flow := cmds.NewFlow[Params, State, Diff](flowID)
	flow.Seed = func(res *resources.Map) error {
		cfg, err := restConfig()
		if err != nil {
			return fmt.Errorf("k8sresource: build rest config: %w", err)
		}
		resources.Insert(res, cfg)
		return nil
	}

	var prev id.ItemID
	hasPrev := false
	for i, manifest := range manifests {
		itemID := itemIDFor(manifest, i)
		it := New(itemID)
		spec := params.Value[Params]{V: Params{
			Manifest:         manifest,
			DefaultNamespace: defaultNamespace,
		}}
		if err := flow.AddItem(it, spec, stateCodec()); err != nil {
			return nil, fmt.Errorf("add item for manifest %d (%s): %w", i, itemID, err)
		}
		if hasPrev {
			if err := flow.AddEdge(prev, itemID, graph.Logic); err != nil {
				return nil, fmt.Errorf("link manifest order %s -> %s: %w", prev, itemID, err)
			}
		}
		prev = itemID
		hasPrev = true
	}
	return flow, nil
}

// stateCodec encodes/decodes State as a YAML document of the form
// `exists: bool` plus, when true, the raw object.
func stateCodec() state.Codec {
	return state.Codec{
		Encode: func(v state.ErasedState) ([]byte, error) {
			s, ok := v.(State)
			if !ok {
				return nil, fmt.Errorf("k8sresource: unexpected state value type %T", v)
			}
			if s.Object == nil {
				return yaml.Marshal(map[string]any{"exists": false})
			}
			return yaml.Marshal(map[string]any{"exists": true, "object": s.Object.Object})
		},
		Decode: func(raw []byte) (state.ErasedState, error) {
			var doc struct {
				Exists bool           `yaml:"exists"`
				Object map[string]any `yaml:"object"`
			}
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return nil, err
			}
			if !doc.Exists {
				return State{}, nil
			}
			return State{Object: &unstructured.Unstructured{Object: doc.Object}}, nil
		},
	}
}
