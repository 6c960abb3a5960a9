package rpc

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/gagliardetto/solana-go"
)

const (
	SignerHeader      = "Crowdfund-Signer"
	TimestampHeader   = "Crowdfund-Timestamp"
	SignatureHeader   = "Crowdfund-Signature"
	ErrorReasonHeader = "Crowdfund-Error-Reason"
)

var (
	ErrMissingSignature = errors.New("request is not signed")
	ErrPartialSignature = errors.New("signature headers are incomplete")
	ErrStaleSignature   = errors.New("signature timestamp is outside the allowed window")
	ErrBadSignature     = errors.New("signature does not verify")
)

type signerKey struct{}

// WithSigner stores a verified caller identity in ctx
func WithSigner(ctx context.Context, signer solana.PublicKey) context.Context {
	return context.WithValue(ctx, signerKey{}, signer)
}

// SignerFromContext returns the verified caller identity, if any
func SignerFromContext(ctx context.Context) (solana.PublicKey, bool) {
	signer, ok := ctx.Value(signerKey{}).(solana.PublicKey)
	return signer, ok
}

// RequireSigner returns the verified caller or an Unauthenticated error
func RequireSigner(ctx context.Context) (solana.PublicKey, error) {
	signer, ok := SignerFromContext(ctx)
	if !ok {
		return solana.PublicKey{}, connect.NewError(connect.CodeUnauthenticated, ErrMissingSignature)
	}
	return signer, nil
}

// SigningPayload is the byte string a caller signs: the procedure, the unix
// millisecond timestamp and the JSON message, separated by newlines.
func SigningPayload(procedure string, timestampMillis int64, msg any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal signed message: %w", err)
	}
	payload := make([]byte, 0, len(procedure)+len(body)+24)
	payload = append(payload, procedure...)
	payload = append(payload, '\n')
	payload = strconv.AppendInt(payload, timestampMillis, 10)
	payload = append(payload, '\n')
	payload = append(payload, body...)
	return payload, nil
}

// NewSigningInterceptor signs every outgoing unary request with key
func NewSigningInterceptor(key solana.PrivateKey) connect.UnaryInterceptorFunc {
	return newSigningInterceptor(key, time.Now)
}

func newSigningInterceptor(key solana.PrivateKey, now func() time.Time) connect.UnaryInterceptorFunc {
	signer := key.PublicKey()
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !req.Spec().IsClient {
				return next(ctx, req)
			}
			ts := now().UnixMilli()
			payload, err := SigningPayload(req.Spec().Procedure, ts, req.Any())
			if err != nil {
				return nil, err
			}
			sig, err := key.Sign(payload)
			if err != nil {
				return nil, fmt.Errorf("sign request: %w", err)
			}
			req.Header().Set(SignerHeader, signer.String())
			req.Header().Set(TimestampHeader, strconv.FormatInt(ts, 10))
			req.Header().Set(SignatureHeader, sig.String())
			return next(ctx, req)
		}
	}
}

// NewVerifyingInterceptor checks request signatures and, when one verifies,
// passes the signer to the handler through the context. Unsigned requests
// pass through anonymously; handlers that mutate state call RequireSigner.
func NewVerifyingInterceptor(maxSkew time.Duration) connect.UnaryInterceptorFunc {
	return newVerifyingInterceptor(maxSkew, time.Now)
}

func newVerifyingInterceptor(maxSkew time.Duration, now func() time.Time) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}
			signer, err := verify(req, maxSkew, now())
			if errors.Is(err, ErrMissingSignature) {
				return next(ctx, req)
			}
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithSigner(ctx, signer), req)
		}
	}
}

func verify(req connect.AnyRequest, maxSkew time.Duration, now time.Time) (solana.PublicKey, error) {
	h := req.Header()
	rawSigner, rawTS, rawSig := h.Get(SignerHeader), h.Get(TimestampHeader), h.Get(SignatureHeader)
	if rawSigner == "" && rawTS == "" && rawSig == "" {
		return solana.PublicKey{}, ErrMissingSignature
	}
	if rawSigner == "" || rawTS == "" || rawSig == "" {
		return solana.PublicKey{}, ErrPartialSignature
	}

	signer, err := solana.PublicKeyFromBase58(rawSigner)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: signer: %v", ErrBadSignature, err)
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: timestamp: %v", ErrBadSignature, err)
	}
	if skew := now.Sub(time.UnixMilli(ts)); skew > maxSkew || skew < -maxSkew {
		return solana.PublicKey{}, ErrStaleSignature
	}
	sig, err := solana.SignatureFromBase58(rawSig)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	payload, err := SigningPayload(req.Spec().Procedure, ts, req.Any())
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !ed25519.Verify(ed25519.PublicKey(signer[:]), payload, sig[:]) {
		return solana.PublicKey{}, ErrBadSignature
	}
	return signer, nil
}
