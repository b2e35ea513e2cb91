package cipher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

const kmsPrefix = "kms:v1:"

// kmsAPI is the subset of the KMS client the cipher needs. Narrowed for
// test doubles.
type kmsAPI interface {
	Encrypt(ctx context.Context, in *kms.EncryptInput, opts ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, opts ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSCipher delegates credential encryption to an AWS KMS key, for
// deployments where the master key must not live on the local machine.
type KMSCipher struct {
	client kmsAPI
	keyID  string
}

// NewKMSCipher builds a KMS-backed cipher using the default AWS
// credential chain.
func NewKMSCipher(ctx context.Context, keyID string) (*KMSCipher, error) {
	if keyID == "" {
		return nil, fmt.Errorf("cipher: kms key id is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cipher: load aws config: %w", err)
	}
	return &KMSCipher{client: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

func newKMSCipherWithClient(client kmsAPI, keyID string) *KMSCipher {
	return &KMSCipher{client: client, keyID: keyID}
}

func (c *KMSCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	out, err := c.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     &c.keyID,
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("cipher: kms encrypt: %w", err)
	}
	return kmsPrefix + base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

func (c *KMSCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, kmsPrefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformedCiphertext, kmsPrefix)
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, kmsPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	out, err := c.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          &c.keyID,
		CiphertextBlob: blob,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return string(out.Plaintext), nil
}
