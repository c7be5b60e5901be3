package editclient

import (
	"context"

	"github.com/hazyhaar/doodle/imagegen"
)

// nullGen replies with no parts.
type nullGen struct{}

func (nullGen) Generate(context.Context, *imagegen.Request) (*imagegen.Reply, error) {
	return &imagegen.Reply{}, nil
}

func (nullGen) Model() string { return "null" }
