package suppliers

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkNormalizeName(b *testing.B) {
	names := []string{"Acme Corp.", "  ＡＣＭＥ   Industrial  Supply ", "Globex, Inc.", "Umbrella Logistics GmbH"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = NormalizeName(names[i%len(names)])
	}
}

func BenchmarkResolveMatch(b *testing.B) {
	repo := newMemoryRepo()
	for i := 0; i < 200; i++ {
		repo.seed("acct-1", fmt.Sprintf("Supplier %03d Holdings", i))
	}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Resolve(ctx, "acct-1", fmt.Sprintf("supplier %03d", i%200)); err != nil {
			b.Fatalf("resolve: %v", err)
		}
	}
}
