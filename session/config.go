/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package session

import (
	"crypto/tls"
	"fmt"

	libval "github.com/go-playground/validator/v10"
	cqlaut "github.com/nabbar/cqldriver/auth"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqlrcn "github.com/nabbar/cqldriver/policy/reconnect"
	cqlrty "github.com/nabbar/cqldriver/policy/retry"
	cqlspc "github.com/nabbar/cqldriver/policy/speculate"
	cqltsg "github.com/nabbar/cqldriver/policy/timestamp"
	cqltrl "github.com/nabbar/cqldriver/policy/translate"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqlrqt "github.com/nabbar/cqldriver/request"
	cqltkn "github.com/nabbar/cqldriver/token"
	cqltrk "github.com/nabbar/cqldriver/tracker"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
)

// SocketOptions tunes every driver socket.
type SocketOptions struct {
	ConnectTimeout libdur.Duration `mapstructure:"connectTimeout" json:"connectTimeout" yaml:"connectTimeout"`
	ReadTimeout    libdur.Duration `mapstructure:"readTimeout" json:"readTimeout" yaml:"readTimeout"`

	// DefunctReadTimeoutThreshold closes a connection after this many
	// cumulative per-attempt timeouts.
	DefunctReadTimeoutThreshold int `mapstructure:"defunctReadTimeoutThreshold" json:"defunctReadTimeoutThreshold" yaml:"defunctReadTimeoutThreshold" validate:"omitempty,gte=0"`
}

// PoolingOptions sizes the per-host pools.
type PoolingOptions struct {
	Warmup                   bool            `mapstructure:"warmup" json:"warmup" yaml:"warmup"`
	CoreConnectionsPerHost   map[string]int  `mapstructure:"coreConnectionsPerHost" json:"coreConnectionsPerHost" yaml:"coreConnectionsPerHost"`
	MaxConnectionsPerHost    map[string]int  `mapstructure:"maxConnectionsPerHost" json:"maxConnectionsPerHost" yaml:"maxConnectionsPerHost"`
	MaxRequestsPerConnection int             `mapstructure:"maxRequestsPerConnection" json:"maxRequestsPerConnection" yaml:"maxRequestsPerConnection" validate:"omitempty,gte=1"`
	HeartBeatInterval        libdur.Duration `mapstructure:"heartBeatInterval" json:"heartBeatInterval" yaml:"heartBeatInterval"`
}

// QueryOptions are the session-wide request defaults.
type QueryOptions struct {
	Consistency       string `mapstructure:"consistency" json:"consistency" yaml:"consistency"`
	SerialConsistency string `mapstructure:"serialConsistency" json:"serialConsistency" yaml:"serialConsistency"`
	FetchSize         int32  `mapstructure:"fetchSize" json:"fetchSize" yaml:"fetchSize" validate:"omitempty,gte=0"`
	Prepare           bool   `mapstructure:"prepare" json:"prepare" yaml:"prepare"`
	IsIdempotent      bool   `mapstructure:"isIdempotent" json:"isIdempotent" yaml:"isIdempotent"`
	Keyspace          string `mapstructure:"keyspace" json:"keyspace" yaml:"keyspace"`
}

// Policies bundles the pluggable behavior of the session.
type Policies struct {
	LoadBalancing        cqlbal.Balancer
	Retry                cqlrty.Policy
	Reconnection         cqlrcn.Policy
	SpeculativeExecution cqlspc.Policy
	TimestampGeneration  cqltsg.Generator
	AddressTranslator    cqltrl.Translator
}

// ClusterConfig is validated once at session construction.
type ClusterConfig struct {
	ContactPoints   []string `mapstructure:"contactPoints" json:"contactPoints" yaml:"contactPoints" validate:"required,min=1,dive,required"`
	Port            int      `mapstructure:"port" json:"port" yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	LocalDataCenter string   `mapstructure:"localDataCenter" json:"localDataCenter" yaml:"localDataCenter"`

	// ProtocolMaxVersion starts the negotiation; zero selects the
	// highest supported version.
	ProtocolMaxVersion uint8 `mapstructure:"protocolMaxVersion" json:"protocolMaxVersion" yaml:"protocolMaxVersion" validate:"omitempty,gte=3,lte=5"`

	// Compression selects the frame body codec, empty or "lz4".
	Compression string `mapstructure:"compression" json:"compression" yaml:"compression" validate:"omitempty,oneof=lz4"`

	SocketOptions SocketOptions  `mapstructure:"socketOptions" json:"socketOptions" yaml:"socketOptions"`
	Pooling       PoolingOptions `mapstructure:"pooling" json:"pooling" yaml:"pooling"`
	QueryOptions  QueryOptions   `mapstructure:"queryOptions" json:"queryOptions" yaml:"queryOptions"`

	// PrepareOnAllHosts eagerly prepares statements on every plan
	// host after the primary prepare succeeds.
	PrepareOnAllHosts bool `mapstructure:"prepareOnAllHosts" json:"prepareOnAllHosts" yaml:"prepareOnAllHosts"`

	// RePrepareOnUp re-prepares the cached statements on hosts coming
	// back up.
	RePrepareOnUp bool `mapstructure:"rePrepareOnUp" json:"rePrepareOnUp" yaml:"rePrepareOnUp"`

	// ReplicationFactor sizes the built-in static ring oracle when no
	// external oracle is injected.
	ReplicationFactor int `mapstructure:"replicationFactor" json:"replicationFactor" yaml:"replicationFactor" validate:"omitempty,gte=1"`

	Policies Policies `mapstructure:"-" json:"-" yaml:"-"`

	AuthProvider   cqlaut.Provider            `mapstructure:"-" json:"-" yaml:"-"`
	SSL            *tls.Config                `mapstructure:"-" json:"-" yaml:"-"`
	RequestTracker cqltrk.Tracker             `mapstructure:"-" json:"-" yaml:"-"`
	Oracle         cqltkn.ReplicaOracle       `mapstructure:"-" json:"-" yaml:"-"`
	Profiles       map[string]*cqlrqt.Profile `mapstructure:"-" json:"-" yaml:"-"`
}

// Validate checks the config against its struct tag constraints plus
// the cross-field rules the tags cannot express.
func (o ClusterConfig) Validate() liberr.Error {
	var e = ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(o); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		}

		for _, er := range err.(libval.ValidationErrors) {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
		}
	}

	if o.QueryOptions.Consistency != "" {
		if _, ok := cqlptc.ParseConsistency(o.QueryOptions.Consistency); !ok {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field 'QueryOptions.Consistency' holds an unknown level '%s'", o.QueryOptions.Consistency))
		}
	}

	if o.QueryOptions.SerialConsistency != "" {
		if c, ok := cqlptc.ParseConsistency(o.QueryOptions.SerialConsistency); !ok || !c.IsSerial() {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field 'QueryOptions.SerialConsistency' holds an invalid serial level '%s'", o.QueryOptions.SerialConsistency))
		}
	}

	if !e.HasParent() {
		e = nil
	}

	return e
}

func (o ClusterConfig) version() cqlptc.Version {
	if o.ProtocolMaxVersion == 0 {
		return cqlptc.VersionMax
	}

	return cqlptc.Version(o.ProtocolMaxVersion)
}

func (o ClusterConfig) consistency() cqlptc.Consistency {
	if c, ok := cqlptc.ParseConsistency(o.QueryOptions.Consistency); ok && o.QueryOptions.Consistency != "" {
		return c
	}

	return cqlptc.LocalOne
}
