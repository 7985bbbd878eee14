package module

import "context"

type frameKey struct{}

type frameInfo struct {
	number uint64
	dt     float64
}

func withFrame(ctx context.Context, f frameInfo) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFromContext(ctx context.Context) frameInfo {
	f, _ := ctx.Value(frameKey{}).(frameInfo)
	return f
}
