// Command rbdinfo loads a mechanism JSON description and reports its
// structure and dynamics at a configuration.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kynetic-labs/rbdyn/dynamics"
	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/rbutil"
	"github.com/kynetic-labs/rbdyn/state"
)

func main() {
	var logger *zap.SugaredLogger

	app := &cli.App{
		Name:  "rbdinfo",
		Usage: "inspect a rigid-body mechanism description",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := rbutil.NewLogger("rbdinfo", c.Bool("debug"))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "describe",
				Usage:     "print body/joint topology and degrees of freedom",
				ArgsUsage: "<mechanism.json>",
				Action: func(c *cli.Context) error {
					mech, err := loadMechanism(c)
					if err != nil {
						return err
					}
					logger.Debugf("loaded mechanism %q, version %d", mech.Name, mech.Version)
					return describeMechanism(c, mech)
				},
			},
			{
				Name:      "mass-matrix",
				Usage:     "print the joint-space mass matrix at the zero configuration",
				ArgsUsage: "<mechanism.json>",
				Action: func(c *cli.Context) error {
					mech, err := loadMechanism(c)
					if err != nil {
						return err
					}
					return printMassMatrix(c, mech)
				},
			},
			{
				Name:      "gravity-torque",
				Usage:     "print the joint torques needed to hold the zero configuration against gravity",
				ArgsUsage: "<mechanism.json>",
				Action: func(c *cli.Context) error {
					mech, err := loadMechanism(c)
					if err != nil {
						return err
					}
					return printGravityTorque(c, mech)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadMechanism(c *cli.Context) (*mechanism.Mechanism, error) {
	path := c.Args().First()
	if path == "" {
		return nil, errors.New("rbdinfo: mechanism description path required")
	}
	return mechanism.LoadFile(path)
}

func describeMechanism(c *cli.Context, mech *mechanism.Mechanism) error {
	fmt.Fprintf(c.App.Writer, "mechanism: %s\n", mech.Name)
	fmt.Fprintf(c.App.Writer, "bodies: %d\n", len(mech.Bodies()))
	fmt.Fprintf(c.App.Writer, "tree joints: %d\n", len(mech.TreeJoints()))
	fmt.Fprintf(c.App.Writer, "loop joints: %d\n", len(mech.LoopJoints()))
	fmt.Fprintf(c.App.Writer, "nq: %d, nv: %d\n", mech.NQ(), mech.NV())
	for _, j := range mech.TreeJoints() {
		fmt.Fprintf(c.App.Writer, "  %s: %s -> %s (%s, nq=%d nv=%d, q[%d:%d] v[%d:%d])\n",
			j.Name, j.Predecessor.Name, j.Successor.Name, j.Model.Kind(),
			j.Model.NQ(), j.Model.NV(), j.QIndex, j.QIndex+j.QLen, j.VIndex, j.VIndex+j.VLen)
	}
	for _, j := range mech.LoopJoints() {
		fmt.Fprintf(c.App.Writer, "  %s (loop): %s -> %s (%s, nc=%d)\n",
			j.Name, j.Predecessor.Name, j.Successor.Name, j.Model.Kind(), j.Model.NC())
	}
	return nil
}

func printMassMatrix(c *cli.Context, mech *mechanism.Mechanism) error {
	s := state.New(mech)
	m, err := dynamics.MassMatrix(s)
	if err != nil {
		return errors.Wrap(err, "rbdinfo: mass-matrix")
	}
	nv := mech.NV()
	for r := 0; r < nv; r++ {
		for col := 0; col < nv; col++ {
			fmt.Fprintf(c.App.Writer, "%10.4f", m.At(r, col))
		}
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

func printGravityTorque(c *cli.Context, mech *mechanism.Mechanism) error {
	s := state.New(mech)
	nv := mech.NV()
	tau, _, err := dynamics.InverseDynamics(s, make([]float64, nv), nil)
	if err != nil {
		return errors.Wrap(err, "rbdinfo: gravity-torque")
	}
	for i, t := range tau {
		fmt.Fprintf(c.App.Writer, "v[%d] = %.6f\n", i, t)
	}
	return nil
}
