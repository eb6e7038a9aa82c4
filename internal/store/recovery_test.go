// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package store_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keywarden/keywarden/internal/auth"
	"github.com/keywarden/keywarden/internal/store"
)

var _ = Describe("FileStore recovery", func() {
	var (
		dir      string
		path     string
		registry *auth.Registry
	)

	newStore := func() *store.FileStore {
		return store.Open(path, registry, 10*time.Minute)
	}

	// seed writes a valid store file holding a single key record.
	seed := func(playerID string) {
		s := newStore()
		Expect(s.Load()).To(Succeed())
		Expect(s.Add(playerID, "", auth.NewKeyMethod(), []string{"hunter2"})).To(Equal(auth.Success))
		Expect(s.Save()).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "player-records.yaml")
		registry = auth.NewRegistry(auth.NewKeyMethod())
	})

	Context("when the primary file is corrupt", func() {
		BeforeEach(func() {
			seed("Alice")
			// Rotate the valid file into the backup slot, then plant garbage
			// as the primary.
			Expect(os.Rename(path, path+store.BackupSuffix)).To(Succeed())
			Expect(os.WriteFile(path, []byte("{{{ not yaml"), 0o600)).To(Succeed())
		})

		It("promotes the backup", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())
			Expect(s.Count()).To(Equal(1))
			Expect(s.Contains("Alice")).To(BeTrue())
		})

		It("retires the used backup", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())

			_, err := os.Stat(path + store.BackupSuffix)
			Expect(err).To(MatchError(os.ErrNotExist))
			_, err = os.Stat(path + store.FinalBackupSuffix)
			Expect(err).NotTo(HaveOccurred())
		})

		It("leaves a loadable primary behind", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())

			again := newStore()
			Expect(again.Load()).To(Succeed())
			Expect(again.Contains("Alice")).To(BeTrue())
		})
	})

	Context("when the primary is corrupt and there is no backup", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("\x00garbage"), 0o600)).To(Succeed())
		})

		It("starts with an empty table", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())
			Expect(s.Count()).To(BeZero())
		})
	})

	Context("when both the primary and the backup are corrupt", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("{{{ not yaml"), 0o600)).To(Succeed())
			Expect(os.WriteFile(path+store.BackupSuffix, []byte("also garbage: ["), 0o600)).To(Succeed())
		})

		It("starts with an empty table instead of failing", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())
			Expect(s.Count()).To(BeZero())
		})

		It("can register and save afterward", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())
			Expect(s.Add("Alice", "", auth.NewKeyMethod(), []string{"hunter2"})).To(Equal(auth.Success))
			Expect(s.Save()).To(Succeed())

			again := newStore()
			Expect(again.Load()).To(Succeed())
			Expect(again.Contains("Alice")).To(BeTrue())
		})
	})

	Context("when the store version is from the future", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("version: 99\nplayers: []\n"), 0o600)).To(Succeed())
		})

		It("treats the file as corrupt", func() {
			s := newStore()
			Expect(s.Load()).To(Succeed())
			Expect(s.Count()).To(BeZero())
		})
	})
})
