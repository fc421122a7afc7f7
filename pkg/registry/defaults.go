package registry

import (
	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/nodes/commenttrigger"
	"github.com/gramflow/gramflow/pkg/nodes/delay"
	"github.com/gramflow/gramflow/pkg/nodes/dmtrigger"
	"github.com/gramflow/gramflow/pkg/nodes/reply"
	"github.com/gramflow/gramflow/pkg/nodes/sendmessage"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// RegisterDefaults registers the built-in node factories. Action nodes
// are bound to the given limiter and social client.
func (r *Registry) RegisterDefaults(limiter *ratelimit.Limiter, client instagram.Client) {
	r.Register(commenttrigger.NewFactory())
	r.Register(dmtrigger.NewFactory())
	r.Register(delay.NewFactory())
	r.Register(reply.NewFactory(limiter, client))
	r.Register(sendmessage.NewFactory(limiter, client))
}
