package mechanism

import (
	"encoding/json"
	"os"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/golang/geo/r3"
	"github.com/kynetic-labs/rbdyn/joints"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// BodyConfig describes one body's inertial properties in a mechanism JSON
// description.
type BodyConfig struct {
	Name string    `json:"name"`
	Mass float64   `json:"mass"`
	Com  [3]float64 `json:"com,omitempty"`
	// Inertia is the central rotational inertia's upper triangle:
	// [Ixx, Iyy, Izz, Ixy, Ixz, Iyz].
	Inertia [6]float64 `json:"inertia,omitempty"`
}

// JointConfig describes one joint in a mechanism JSON description: the
// bodies it connects, its kind, and the fixed placement of frame_before on
// the parent and frame_after on the child.
type JointConfig struct {
	Name   string  `json:"name"`
	Parent string  `json:"parent"`
	Child  string  `json:"child"`
	Kind   string  `json:"kind"`
	Axis   [3]float64 `json:"axis,omitempty"`
	Normal [3]float64 `json:"normal,omitempty"`

	// ParentTranslation/ParentQuat place frame_before on Parent.
	ParentTranslation [3]float64 `json:"parent_translation,omitempty"`
	ParentQuat        [4]float64 `json:"parent_quat,omitempty"` // w,x,y,z; defaults to identity
	// ChildTranslation/ChildQuat place the child's own frame on frame_after.
	ChildTranslation [3]float64 `json:"child_translation,omitempty"`
	ChildQuat        [4]float64 `json:"child_quat,omitempty"`
}

// Config is the top-level mechanism JSON description.
type Config struct {
	Name    string       `json:"name"`
	Gravity [3]float64   `json:"gravity,omitempty"`
	Bodies  []BodyConfig `json:"bodies"`
	Joints  []JointConfig `json:"joints"`
}

func quatOrIdentity(q [4]float64) quat.Number {
	if q == ([4]float64{}) {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
}

func vec(v [3]float64) r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

func kindFromString(k string, axis, normal r3.Vector) (joints.Model, error) {
	switch k {
	case "revolute":
		return joints.NewRevolute(axis), nil
	case "prismatic":
		return joints.NewPrismatic(axis), nil
	case "planar":
		return joints.NewPlanar(normal), nil
	case "fixed":
		return joints.Fixed{}, nil
	case "floating", "quaternion_floating":
		return joints.QuaternionFloating{}, nil
	case "spquat_floating":
		return joints.SPQuatFloating{}, nil
	case "se3_floating":
		return joints.SE3Floating{}, nil
	default:
		return nil, rerr.NewTopologyError("unsupported joint kind: " + k)
	}
}

func inertiaTensor(diag [6]float64) *mat.SymDense {
	t := mat.NewSymDense(3, nil)
	t.SetSym(0, 0, diag[0])
	t.SetSym(1, 1, diag[1])
	t.SetSym(2, 2, diag[2])
	t.SetSym(0, 1, diag[3])
	t.SetSym(0, 2, diag[4])
	t.SetSym(1, 2, diag[5])
	return t
}

// Load parses a mechanism JSON description, substituting ${VAR}-style
// environment variables in the raw text before unmarshaling, and builds a
// Mechanism from it. Joints may be listed in any order; parent bodies are
// resolved by name as they are encountered, with any joint whose parent
// isn't yet resolved retried on a later pass.
func Load(raw []byte) (*Mechanism, error) {
	expanded, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "mechanism.Load: env substitution")
	}
	var cfg Config
	if err := json.Unmarshal(expanded, &cfg); err != nil {
		return nil, errors.Wrap(err, "mechanism.Load: unmarshal")
	}
	return cfg.Build()
}

// LoadFile reads and parses a mechanism JSON description from disk.
func LoadFile(path string) (*Mechanism, error) {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, errors.Wrap(err, "mechanism.LoadFile: read")
	}
	return Load(raw)
}

// Build constructs a Mechanism from an already-parsed Config.
func (cfg *Config) Build() (*Mechanism, error) {
	gravity := cfg.Gravity
	m := New(cfg.Name, gravity)

	bodyByName := map[string]*Body{"world": m.Root()}
	bodySpecByName := map[string]BodyConfig{}
	for _, bc := range cfg.Bodies {
		bodySpecByName[bc.Name] = bc
	}

	// Per-joint config errors (unknown child body, unknown joint kind) are
	// independent of each other, so every pass accumulates all of them via
	// multierr rather than failing out on the first one; a caller fixing up
	// a mechanism description sees every problem in one error instead of
	// playing whack-a-mole.
	var configErrs error
	pending := append([]JointConfig(nil), cfg.Joints...)
	for len(pending) > 0 {
		progressed := false
		var next []JointConfig
		for _, jc := range pending {
			parent, ok := bodyByName[jc.Parent]
			if !ok {
				next = append(next, jc)
				continue
			}
			bc, ok := bodySpecByName[jc.Child]
			if !ok {
				configErrs = multierr.Append(configErrs,
					rerr.NewTopologyError("mechanism.Load: joint "+jc.Name+" references unknown child body "+jc.Child))
				continue
			}
			childFrame := spatial.NewFrame(jc.Child)
			inertia := spatial.NewSpatialInertia(childFrame, bc.Mass, vec(bc.Com), inertiaTensor(bc.Inertia))
			child := &Body{Name: bc.Name, DefaultFrame: childFrame, Inertia: inertia, index: -1}

			model, err := kindFromString(jc.Kind, vec(jc.Axis), vec(jc.Normal))
			if err != nil {
				configErrs = multierr.Append(configErrs, errors.Wrapf(err, "mechanism.Load: joint %s", jc.Name))
				continue
			}
			frameBefore := spatial.NewFrame(jc.Name + "/before")
			frameAfter := spatial.NewFrame(jc.Name + "/after")
			jointPose := spatial.NewTransform(frameBefore, parent.DefaultFrame, quatOrIdentity(jc.ParentQuat), vec(jc.ParentTranslation))
			successorPose := spatial.NewTransform(childFrame, frameAfter, quatOrIdentity(jc.ChildQuat), vec(jc.ChildTranslation))

			if _, err := m.Attach(parent, child, model, frameBefore, frameAfter, jointPose, successorPose, jc.Name); err != nil {
				configErrs = multierr.Append(configErrs, errors.Wrapf(err, "mechanism.Load: attach %s", jc.Name))
				continue
			}
			bodyByName[jc.Child] = child
			progressed = true
		}
		if !progressed && len(next) > 0 {
			return nil, multierr.Append(configErrs, rerr.NewTopologyError("mechanism.Load: joints reference an unresolved or cyclic parent chain"))
		}
		pending = next
	}
	if configErrs != nil {
		return nil, configErrs
	}
	return m, nil
}
