package evaluator

import (
	"context"
	"strings"
	"time"

	"github.com/fetchdsl/fetchdsl/internal/dsl/ast"
	"github.com/fetchdsl/fetchdsl/internal/dsl/dslerrors"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

func (s *evalState) evalRequestExpr(ctx context.Context, e *ast.RequestExpr) (any, error) {
	method := httpclient.MethodGET
	if strings.EqualFold(e.Method.Value, "post") {
		method = httpclient.MethodPOST
	}

	urlVal, err := s.evalNode(ctx, e.URL)
	if err != nil {
		return nil, err
	}
	opts := []httpclient.RequestOption{httpclient.WithMethod(method)}

	timeoutVal, err := s.evalNode(ctx, e.Timeout)
	if err != nil {
		return nil, err
	}
	if d, ok := timeoutVal.(time.Duration); ok {
		opts = append(opts, httpclient.WithTimeout(d))
	}

	retryVal, err := s.evalNode(ctx, e.Retry)
	if err != nil {
		return nil, err
	}
	if retryVal != nil {
		n, err := toFloat(retryVal)
		if err != nil {
			return nil, &dslerrors.EvaluatorError{Message: "retry count", Cause: err}
		}
		opts = append(opts, httpclient.WithRetry(int(n)))
	}

	retryIntervalVal, err := s.evalNode(ctx, e.RetryInterval)
	if err != nil {
		return nil, err
	}
	if d, ok := retryIntervalVal.(time.Duration); ok {
		opts = append(opts, httpclient.WithRetryInterval(d))
	}

	sleepVal, err := s.evalNode(ctx, e.Sleep)
	if err != nil {
		return nil, err
	}
	if d, ok := sleepVal.(time.Duration); ok {
		opts = append(opts, httpclient.WithSleep(d))
	}

	for _, set := range e.SetList {
		opt, err := s.evalSet(set)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	// `get from [ 'url-a', 'url-b' ]` evaluates URL to a sequence: build one
	// Request per URL, all sharing the same method/timeout/retry/set opts,
	// mirroring the original's `[Request(url, **req_params) for url in urls]`.
	if urls, ok := toSlice(urlVal); ok {
		reqs := make([]httpclient.Request, len(urls))
		for i, u := range urls {
			req, err := httpclient.NewRequest(toString(u), opts...)
			if err != nil {
				return nil, &dslerrors.EvaluatorError{Message: "building request", Cause: err}
			}
			reqs[i] = req
		}
		return reqs, nil
	}

	req, err := httpclient.NewRequest(toString(urlVal), opts...)
	if err != nil {
		return nil, &dslerrors.EvaluatorError{Message: "building request", Cause: err}
	}
	return req, nil
}

// evalSet resolves one "set KEY equals VALUE in FIELD" clause into a
// RequestOption. FIELD selects the destination: "query"/"headers"/"meta"
// treat KEY as the literal param/header/meta name; "body" instead uses
// KEY to pick which of the five mutually-exclusive body encodings
// (json/form/body/text/file) VALUE populates.
func (s *evalState) evalSet(set *ast.Set) (httpclient.RequestOption, error) {
	val, err := s.bridge.EvalExpr(set.Value.Text, s.hostEnv())
	if err != nil {
		return nil, &dslerrors.EvaluatorError{Message: "set clause value", Cause: err}
	}
	switch set.Field.Value {
	case "query":
		return httpclient.WithParam(set.Key.Value, toString(val)), nil
	case "headers":
		return httpclient.WithHeader(set.Key.Value, toString(val)), nil
	case "meta":
		return httpclient.WithMeta(set.Key.Value, val), nil
	case "body":
		switch set.Key.Value {
		case "json":
			return httpclient.WithJSON(val), nil
		case "form":
			m, ok := toStringMap(val)
			if !ok {
				return nil, &dslerrors.EvaluatorError{Message: "form body value must be a map"}
			}
			return httpclient.WithForm(m), nil
		case "body":
			b, err := toBytes(val)
			if err != nil {
				return nil, &dslerrors.EvaluatorError{Message: "body value", Cause: err}
			}
			return httpclient.WithBody(b), nil
		case "text":
			return httpclient.WithText(toString(val)), nil
		case "file":
			return httpclient.WithFile(toString(val)), nil
		default:
			return nil, &dslerrors.EvaluatorError{Message: "unrecognized body field " + set.Key.Value}
		}
	default:
		return nil, &dslerrors.EvaluatorError{Message: "unrecognized set field " + set.Field.Value}
	}
}

func (s *evalState) evalFutureExpr(ctx context.Context, e *ast.FutureExpr) (any, error) {
	v, err := s.evalExpr(ctx, e.Expr)
	if err != nil {
		return nil, err
	}
	switch r := v.(type) {
	case httpclient.Request:
		return s.client.Submit(r), nil
	case []httpclient.Request:
		return s.client.Submit(r...), nil
	default:
		return nil, &dslerrors.EvaluatorError{Message: "send requires a request value"}
	}
}

func (s *evalState) evalResponseExpr(ctx context.Context, e *ast.ResponseExpr) (any, error) {
	v, err := s.evalExpr(ctx, e.Expr)
	if err != nil {
		return nil, err
	}
	future, ok := v.(*httpclient.Future)
	if !ok {
		return nil, &dslerrors.EvaluatorError{Message: "wait requires a pending request"}
	}
	result, err := future.Wait(ctx)
	if err != nil {
		return nil, &dslerrors.EvaluatorError{Message: "awaiting response", Cause: err}
	}
	return result, nil
}
