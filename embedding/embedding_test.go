package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kesslerio/ragcore/llm"
)

type fakeProvider struct {
	vectors [][]float32
	err     error
}

func (f *fakeProvider) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestEmbedNormalizesToUnitLength(t *testing.T) {
	p := &fakeProvider{vectors: [][]float32{{3, 4, 0}}}
	s := New(p, 3)
	out, err := s.Embed(context.Background(), []string{"hello"}, KindDocument)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	var sumSq float64
	for _, x := range out[0] {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sumSq)-1.0) > 1e-6 {
		t.Errorf("expected unit-length vector, got norm %v", math.Sqrt(sumSq))
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	p := &fakeProvider{vectors: [][]float32{{1, 2}}}
	s := New(p, 3)
	_, err := s.Embed(context.Background(), []string{"hello"}, KindDocument)
	if err == nil {
		t.Fatal("expected a dimension-mismatch error")
	}
}

func TestEmbedWrapsProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	s := New(p, 3)
	_, err := s.Embed(context.Background(), []string{"hello"}, KindDocument)
	if err == nil {
		t.Fatal("expected an error when the provider fails")
	}
}

func TestEmbedEmptyInputReturnsEmptyOutput(t *testing.T) {
	s := New(&fakeProvider{}, 3)
	out, err := s.Embed(context.Background(), nil, KindDocument)
	if err != nil || out != nil {
		t.Errorf("Embed(nil) = %v, %v, want nil, nil", out, err)
	}
}
