// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Embedded migrations", func() {
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	It("pairs every up migration with a down migration", func() {
		entries, err := migrationsFS.ReadDir("migrations")
		Expect(err).NotTo(HaveOccurred())

		names := map[string]bool{}
		for _, e := range entries {
			Expect(e.Name()).To(MatchRegexp(pattern.String()))
			names[e.Name()] = true
		}
		for name := range names {
			if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
				Expect(names).To(HaveKey(base + ".down.sql"))
			}
		}
	})

	It("lists versions in ascending order", func() {
		versions, err := embeddedVersions()
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(Equal([]uint{1, 2}))
	})

	It("creates the accounts table with a unique email", func() {
		body, err := fs.ReadFile(migrationsFS, "migrations/000001_create_accounts.up.sql")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("CREATE TABLE IF NOT EXISTS accounts"))
		Expect(string(body)).To(MatchRegexp(`email\s+TEXT NOT NULL UNIQUE`))
	})

	DescribeTable("MigrationName",
		func(version uint, want string) {
			name, err := MigrationName(version)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal(want))
		},
		Entry("first migration", uint(1), "000001_create_accounts"),
		Entry("second migration", uint(2), "000002_reset_token_index"),
		Entry("unknown version", uint(99), ""),
	)
})

type fakePinger struct {
	failures int
	calls    int
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

var _ = Describe("waitReady", func() {
	opts := ConnectOptions{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	It("retries until the database answers", func() {
		p := &fakePinger{failures: 2}
		Expect(waitReady(context.Background(), p, opts)).To(Succeed())
		Expect(p.calls).To(Equal(3))
	})

	It("gives up after the retry budget", func() {
		p := &fakePinger{failures: 100}
		err := waitReady(context.Background(), p, opts)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("connection refused"))
		Expect(p.calls).To(Equal(4))
	})
})
