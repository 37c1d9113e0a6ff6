package projection

import (
	"context"

	"github.com/rs/zerolog"
)

func logWarn(ctx context.Context, msg string, fields map[string]any) {
	ev := zerolog.Ctx(ctx).Warn()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
