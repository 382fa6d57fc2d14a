package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meetinghost/internal/config"
	"meetinghost/internal/directory"
	dbconfig "meetinghost/pkg/database"
	"meetinghost/pkg/types"
)

const directoryWriteTimeout = 10 * time.Second

func directoryCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage the local SQLite user directory",
		Long: `The local directory replaces the HTTP directory service when
directory.driver is "sqlite". It maps client tokens to user profiles and
meeting codes to presenters.`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultConfig().Directory.DatabasePath, "path to the directory database")

	open := func() (*directory.Store, error) {
		c := dbconfig.DefaultConfig()
		c.DatabasePath = dbPath
		return directory.OpenStore(c)
	}

	cmd.AddCommand(
		directoryInitCmd(open),
		directoryAddUserCmd(open),
		directoryAddMeetingCmd(open),
	)
	return cmd
}

type storeOpener func() (*directory.Store, error)

func directoryInitCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the directory database and apply migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "directory initialized")
			return nil
		},
	}
}

func directoryAddUserCmd(open storeOpener) *cobra.Command {
	var (
		token string
		user  types.User
	)

	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Add or replace the user a token resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			return withStore(open, func(ctx context.Context, store *directory.Store) error {
				if err := store.PutUser(ctx, token, &user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) saved\n", user.ID, user.FullName())
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&token, "token", "", "authentication token clients present")
	f.IntVar(&user.ID, "id", 0, "user id")
	f.StringVar(&user.FirstName, "first-name", "", "first name")
	f.StringVar(&user.Surname, "surname", "", "surname")
	f.StringVar(&user.Company, "company", "", "company")
	f.StringVar(&user.JobTitle, "job-title", "", "job title")
	f.StringVar(&user.WorkEmail, "email", "", "work email")
	f.StringVar(&user.PhoneNumber, "phone", "", "phone number")
	f.IntVar(&user.AvatarID, "avatar", 0, "avatar id")
	return cmd
}

func directoryAddMeetingCmd(open storeOpener) *cobra.Command {
	var (
		code      string
		presenter int
	)

	cmd := &cobra.Command{
		Use:   "add-meeting",
		Short: "Add or replace a meeting code and its presenter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store *directory.Store) error {
				if err := store.PutMeeting(ctx, code, presenter); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "meeting %s saved with presenter %d\n", code, presenter)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "meeting code clients send")
	cmd.Flags().IntVar(&presenter, "presenter", 0, "user id of the presenter")
	return cmd
}

func withStore(open storeOpener, fn func(context.Context, *directory.Store) error) (err error) {
	store, err := open()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), directoryWriteTimeout)
	defer cancel()
	return fn(ctx, store)
}
