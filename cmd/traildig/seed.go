package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/traildig/traildig-server/internal/di/providers"
	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/service"
)

// fixtures is the layout of a seed file:
//
//	users:
//	  - email: crew@trails.org
//	    password: change-me-please
//	    admin: false
//	tags:
//	  - owner: crew@trails.org
//	    name: Drainage
//	sessions:
//	  - owner: crew@trails.org
//	    title: Ridge ditch
//	    time_minutes: 120
//	    number_people: 4
//	    occurred_at: "2024-11-01T20:01:00"
//	    tags: [Drainage]
type fixtures struct {
	Users    []userFixture    `yaml:"users"`
	Tags     []tagFixture     `yaml:"tags"`
	Sessions []sessionFixture `yaml:"sessions"`
}

type userFixture struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Admin     bool   `yaml:"admin"`
}

type tagFixture struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

type sessionFixture struct {
	Owner        string   `yaml:"owner"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	TimeMinutes  int      `yaml:"time_minutes"`
	NumberPeople int      `yaml:"number_people"`
	Link         string   `yaml:"link"`
	OccurredAt   string   `yaml:"occurred_at"`
	Tags         []string `yaml:"tags"`
}

// seedReport counts what a seed run created and skipped.
type seedReport struct {
	Users, Tags, Sessions int
	Skipped               int
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, tags and work sessions from a YAML fixture file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file) //#nosec G304 -- fixture path comes from the operator
			if err != nil {
				return fmt.Errorf("open fixtures: %w", err)
			}
			defer f.Close()

			fx, err := loadFixtures(f)
			if err != nil {
				return err
			}

			return withServices(cmd, func(ctx context.Context, injector do.Injector) error {
				s := seeder{
					store:        do.MustInvoke[*providers.StoreHandle](injector).Store,
					auth:         do.MustInvoke[*service.AuthService](injector),
					tags:         do.MustInvoke[*service.TagService](injector),
					workSessions: do.MustInvoke[*service.WorkSessionService](injector),
				}
				report, err := s.apply(ctx, fx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d tags, %d sessions (%d already present)\n",
					report.Users, report.Tags, report.Sessions, report.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "fixtures.yaml", "Path to the YAML fixture file")

	return cmd
}

// loadFixtures decodes a fixture file, rejecting unknown keys.
func loadFixtures(r io.Reader) (*fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx fixtures
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}

type userLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type seeder struct {
	store        userLookup
	auth         *service.AuthService
	tags         *service.TagService
	workSessions *service.WorkSessionService
}

// apply creates the fixtures in order. Users and tags that already exist are
// skipped so a file can be applied more than once; sessions are always added.
func (s seeder) apply(ctx context.Context, fx *fixtures) (seedReport, error) {
	var report seedReport
	owners := make(map[string]string)

	for _, u := range fx.Users {
		var (
			user *domain.User
			err  error
		)
		if u.Admin {
			user, err = s.auth.CreateSuperuser(ctx, u.Email, u.Password)
		} else {
			user, err = s.auth.CreateMember(ctx, u.Email, u.Password, u.FirstName, u.LastName)
		}
		switch {
		case err == nil:
			report.Users++
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			report.Skipped++
		default:
			return report, fmt.Errorf("user %s: %w", u.Email, err)
		}
		if user != nil {
			owners[u.Email] = user.ID
		}
	}

	ownerID := func(email string) (string, error) {
		if id, ok := owners[email]; ok {
			return id, nil
		}
		user, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("owner %s: %w", email, err)
		}
		owners[email] = user.ID
		return user.ID, nil
	}

	for _, t := range fx.Tags {
		id, err := ownerID(t.Owner)
		if err != nil {
			return report, err
		}
		_, err = s.tags.Create(ctx, id, t.Name)
		switch {
		case err == nil:
			report.Tags++
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			report.Skipped++
		default:
			return report, fmt.Errorf("tag %s: %w", t.Name, err)
		}
	}

	for _, ws := range fx.Sessions {
		id, err := ownerID(ws.Owner)
		if err != nil {
			return report, err
		}
		if _, err := s.workSessions.Create(ctx, id, ws.input()); err != nil {
			return report, fmt.Errorf("session %q: %w", ws.Title, err)
		}
		report.Sessions++
	}

	return report, nil
}

func (f sessionFixture) input() service.WorkSessionInput {
	in := service.WorkSessionInput{
		Title:        &f.Title,
		Description:  &f.Description,
		TimeMinutes:  &f.TimeMinutes,
		NumberPeople: &f.NumberPeople,
		Link:         &f.Link,
	}
	if f.OccurredAt != "" {
		in.OccurredAt = &f.OccurredAt
	}
	refs := make([]domain.TagRef, len(f.Tags))
	for i, name := range f.Tags {
		refs[i] = domain.TagRef{Name: name}
	}
	in.Tags = &refs
	return in
}
