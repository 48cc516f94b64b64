package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

func TestRegisterSingle_CompleteSingle(t *testing.T) {
	r := New()
	ch := r.RegisterSingle("evt1", "get_balance")
	require.Equal(t, 1, r.Len())

	outcome := r.CompleteSingle("evt1", types.RawResponse{ResultType: "get_balance"})
	require.Equal(t, SingleCompleted, outcome)
	require.Equal(t, 0, r.Len())

	resp := <-ch
	require.Equal(t, "get_balance", resp.ResultType)
}

func TestCompleteSingle_NotFound(t *testing.T) {
	r := New()
	outcome := r.CompleteSingle("missing", types.RawResponse{})
	require.Equal(t, NotFound, outcome)
}

func TestCompleteSingle_ReRegisterAfterCompletion(t *testing.T) {
	r := New()
	ch := r.RegisterSingle("evt1", "get_balance")
	require.Equal(t, SingleCompleted, r.CompleteSingle("evt1", types.RawResponse{}))
	<-ch

	// Re-registering after completion should succeed (entry removed).
	ch2 := r.RegisterSingle("evt1", "get_balance")
	require.Equal(t, SingleCompleted, r.CompleteSingle("evt1", types.RawResponse{}))
	<-ch2
}

func TestRegisterSingle_DuplicatePanics(t *testing.T) {
	r := New()
	r.RegisterSingle("evt1", "get_balance")
	require.Panics(t, func() {
		r.RegisterSingle("evt1", "get_balance")
	})
}

func TestMulti_CompletesOnceAllKeysPresent(t *testing.T) {
	r := New()
	ch := r.RegisterMulti("multi1", "multi_pay_invoice", []string{"a", "b"})

	require.Equal(t, Partial, r.AddMulti("multi1", "a", types.RawResponse{ResultType: "a-resp"}))
	require.Equal(t, 1, r.Len())

	require.Equal(t, MultiCompleted, r.AddMulti("multi1", "b", types.RawResponse{ResultType: "b-resp"}))
	require.Equal(t, 0, r.Len())

	results := <-ch
	require.Len(t, results, 2)
	require.Equal(t, "a-resp", results["a"].ResultType)
	require.Equal(t, "b-resp", results["b"].ResultType)
}

func TestMulti_DuplicateKeyIgnored(t *testing.T) {
	r := New()
	ch := r.RegisterMulti("multi1", "multi_pay_invoice", []string{"a", "b"})

	require.Equal(t, Partial, r.AddMulti("multi1", "a", types.RawResponse{ResultType: "first"}))
	require.Equal(t, Partial, r.AddMulti("multi1", "a", types.RawResponse{ResultType: "second"}))
	require.Equal(t, MultiCompleted, r.AddMulti("multi1", "b", types.RawResponse{}))

	results := <-ch
	require.Equal(t, "first", results["a"].ResultType)
}

func TestAddMulti_NotFound(t *testing.T) {
	r := New()
	require.Equal(t, MultiNotFound, r.AddMulti("missing", "a", types.RawResponse{}))
}

func TestCompleteWithError_Single(t *testing.T) {
	r := New()
	ch := r.RegisterSingle("evt1", "pay_invoice")
	r.CompleteWithError("evt1", types.NwcError{Code: "TIMEOUT", Message: "no response"})

	resp := <-ch
	require.NotNil(t, resp.Error)
	require.Equal(t, "TIMEOUT", resp.Error.Code)
	require.Equal(t, 0, r.Len())
}

func TestCompleteWithError_MultiFillsMissingKeys(t *testing.T) {
	r := New()
	ch := r.RegisterMulti("multi1", "multi_pay_invoice", []string{"a", "b"})
	r.AddMulti("multi1", "a", types.RawResponse{ResultType: "a-resp"})

	r.CompleteWithError("multi1", types.NwcError{Code: "TIMEOUT", Message: "no response"})

	results := <-ch
	require.Equal(t, "a-resp", results["a"].ResultType)
	require.NotNil(t, results["b"].Error)
	require.Equal(t, "TIMEOUT", results["b"].Error.Code)
}

func TestResolveRequestID_SinglePendingShortcut(t *testing.T) {
	r := New()
	r.RegisterSingle("evt1", "get_balance")

	id, ok := r.ResolveRequestID("anything")
	require.True(t, ok)
	require.Equal(t, "evt1", id)
}

func TestResolveRequestID_UniqueMethodMatch(t *testing.T) {
	r := New()
	r.RegisterSingle("evt1", "get_balance")
	r.RegisterSingle("evt2", "get_info")

	id, ok := r.ResolveRequestID("get_info")
	require.True(t, ok)
	require.Equal(t, "evt2", id)
}

func TestResolveRequestID_AmbiguousFails(t *testing.T) {
	r := New()
	r.RegisterSingle("evt1", "get_balance")
	r.RegisterSingle("evt2", "get_balance")

	_, ok := r.ResolveRequestID("get_balance")
	require.False(t, ok)
}

func TestCancelAll(t *testing.T) {
	r := New()
	singleCh := r.RegisterSingle("evt1", "get_balance")
	multiCh := r.RegisterMulti("multi1", "multi_pay_invoice", []string{"a"})

	r.CancelAll()
	require.Equal(t, 0, r.Len())

	single := <-singleCh
	require.NotNil(t, single.Error)
	require.Equal(t, "CLIENT_CLOSED", single.Error.Code)

	multi := <-multiCh
	require.NotNil(t, multi["a"].Error)
	require.Equal(t, "CLIENT_CLOSED", multi["a"].Error.Code)
}
