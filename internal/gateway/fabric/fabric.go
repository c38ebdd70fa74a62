// Package fabric implements gateway.Chain over a Hyperledger Fabric peer.
package fabric

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/medchain/medchain/internal/config"
	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/model"
)

// Contract function names expected on the deployed chaincode.
const (
	fnIsDoctor        = "IsDoctor"
	fnIsAdmin         = "IsAdmin"
	fnPatientDetails  = "GetPatientDetails"
	fnRecordDetails   = "GetRecordDetails"
	fnRegisterDoctor  = "RegisterDoctor"
	fnRegisterPatient = "RegisterPatient"
	fnAddRecord       = "AddRecord"
)

// Gateway wraps a Fabric contract handle behind the gateway.Chain interface.
type Gateway struct {
	conn     *grpc.ClientConn
	gw       *client.Gateway
	contract *client.Contract
	account  string
	log      *zap.Logger
}

// Connect dials the peer, enrolls the configured identity and binds the
// contract handle. The caller owns the returned Gateway and must Close it.
func Connect(cfg config.Config, log *zap.Logger) (*Gateway, error) {
	certPEM, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read cert: %v", errs.ErrProviderUnavailable, err)
	}
	cert, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: parse cert: %v", errs.ErrProviderUnavailable, err)
	}

	id, err := identity.NewX509Identity(cfg.MSPID, cert)
	if err != nil {
		return nil, fmt.Errorf("%w: identity: %v", errs.ErrConnectionDenied, err)
	}

	keyPEM, err := readKey(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read key: %v", errs.ErrConnectionDenied, err)
	}
	key, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: parse key: %v", errs.ErrConnectionDenied, err)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, fmt.Errorf("%w: signer: %v", errs.ErrConnectionDenied, err)
	}

	conn, err := newGrpcConnection(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := client.Connect(
		id,
		client.WithSign(sign),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(5*time.Second),
		client.WithEndorseTimeout(15*time.Second),
		client.WithSubmitTimeout(5*time.Second),
		client.WithCommitStatusTimeout(1*time.Minute),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrContractUnavailable, err)
	}

	contract := gw.GetNetwork(cfg.Channel).GetContract(cfg.Chaincode)
	account := cert.Subject.CommonName
	log.Info("chain gateway connected",
		zap.String("peer", cfg.PeerEndpoint),
		zap.String("channel", cfg.Channel),
		zap.String("chaincode", cfg.Chaincode),
		zap.String("account", account),
	)

	return &Gateway{conn: conn, gw: gw, contract: contract, account: account, log: log}, nil
}

func newGrpcConnection(cfg config.Config) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if cfg.TLSCertPath != "" {
		pem, err := os.ReadFile(cfg.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read TLS cert: %v", errs.ErrContractUnavailable, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: bad TLS cert", errs.ErrContractUnavailable)
		}
		creds = credentials.NewClientTLSFromCert(pool, cfg.GatewayPeer)
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(cfg.PeerEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrContractUnavailable, cfg.PeerEndpoint, err)
	}
	return conn, nil
}

// readKey accepts either a key file or an MSP keystore directory holding
// exactly one key file.
func readKey(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return os.ReadFile(path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty keystore %s", path)
	}
	return os.ReadFile(filepath.Join(path, entries[0].Name()))
}

// Close releases the gateway and its underlying connection.
func (g *Gateway) Close() error {
	g.gw.Close()
	return g.conn.Close()
}

// Account returns the address of the enrolled client identity.
func (g *Gateway) Account() string { return g.account }

func (g *Gateway) IsDoctor(ctx context.Context, addr string) (bool, error) {
	out, err := g.evaluate(ctx, fnIsDoctor, addr)
	if err != nil {
		return false, err
	}
	return decodeBool(out)
}

func (g *Gateway) IsAdmin(ctx context.Context, addr string) (bool, error) {
	out, err := g.evaluate(ctx, fnIsAdmin, addr)
	if err != nil {
		return false, err
	}
	return decodeBool(out)
}

func (g *Gateway) PatientDetails(ctx context.Context, addr string) (model.PatientDetails, error) {
	out, err := g.evaluate(ctx, fnPatientDetails, addr)
	if err != nil {
		if isNotRegistered(err) {
			return model.PatientDetails{}, fmt.Errorf("%w: %s", errs.ErrNotRegistered, addr)
		}
		return model.PatientDetails{}, err
	}
	return decodePatientDetails(out)
}

func (g *Gateway) RecordDetails(ctx context.Context, addr string, index int) (model.RecordSummary, error) {
	out, err := g.evaluate(ctx, fnRecordDetails, addr, fmt.Sprint(index))
	if err != nil {
		return model.RecordSummary{}, err
	}
	return decodeRecordSummary(out, index)
}

func (g *Gateway) RegisterDoctor(ctx context.Context, addr string) error {
	return g.submit(ctx, fnRegisterDoctor, addr)
}

func (g *Gateway) RegisterPatient(ctx context.Context, name, patientID string) error {
	return g.submit(ctx, fnRegisterPatient, name, patientID)
}

func (g *Gateway) AddRecord(ctx context.Context, patientAddr, recordType, contentID, authorName, metadataJSON string) error {
	return g.submit(ctx, fnAddRecord, patientAddr, recordType, contentID, authorName, metadataJSON)
}

func (g *Gateway) evaluate(ctx context.Context, fn string, args ...string) ([]byte, error) {
	out, err := g.contract.EvaluateWithContext(ctx, fn, client.WithArguments(args...))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", fn, err)
	}
	return out, nil
}

func (g *Gateway) submit(ctx context.Context, fn string, args ...string) error {
	start := time.Now()
	_, err := g.contract.SubmitWithContext(ctx, fn, client.WithArguments(args...))
	if err != nil {
		return fmt.Errorf("submit %s: %w", fn, err)
	}
	g.log.Info("transaction committed",
		zap.String("fn", fn),
		zap.Duration("dur", time.Since(start)),
	)
	return nil
}

// isNotRegistered recognizes the chaincode's unregistered-patient rejection.
func isNotRegistered(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not registered") || strings.Contains(msg, "does not exist")
}
