package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/hospitalrequest"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/domain/sos"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/geo"
	"github.com/rescue/rescue/pkg/pagination"
)

func locationFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "Latitude in degrees")
	cmd.Flags().Float64("lon", 0, "Longitude in degrees")
}

// location reads --lat/--lon. ok is false when neither was given.
func location(cmd *cobra.Command) (loc geo.LatLon, ok bool) {
	if !cmd.Flags().Changed("lat") && !cmd.Flags().Changed("lon") {
		return geo.LatLon{}, false
	}
	loc.Latitude, _ = cmd.Flags().GetFloat64("lat")
	loc.Longitude, _ = cmd.Flags().GetFloat64("lon")
	return loc, true
}

func requireLocation(cmd *cobra.Command) (geo.LatLon, error) {
	loc, ok := location(cmd)
	if !ok {
		return geo.LatLon{}, apperr.Validation(apperr.CodeInvalidCoordinates, "--lat and --lon are required")
	}
	return loc, nil
}

// idCommand builds a subcommand taking one request ID and acting as --as.
func idCommand(use, short string, fn func(ctx context.Context, a *app, actor identity.Actor, cmd *cobra.Command, id string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				res, err := fn(ctx, a, actor, cmd, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			return run(cmd, func(ctx context.Context, a *app) error {
				u := &identity.User{
					Name:  name,
					Role:  identity.Role(role),
					Email: optionalString(cmd, "email"),
					Phone: optionalString(cmd, "phone"),
				}
				if raw := optionalString(cmd, "blood-type"); raw != nil {
					bt, ok := blood.Parse(*raw)
					if !ok {
						return apperr.Validation(apperr.CodeInvalidBloodType, "blood type is not one of the eight canonical types").WithDetail("blood_type", *raw)
					}
					u.BloodType = &bt
				}
				if loc, ok := location(cmd); ok {
					u.Location = &loc
				}
				if err := a.users.Create(ctx, u); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("role", string(identity.RolePatient), "patient, donor, hospital_staff or admin")
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("phone", "", "Phone number")
	createCmd.Flags().String("blood-type", "", "Blood type, e.g. O-")
	locationFlags(createCmd)
	cmd.AddCommand(createCmd)

	setLocation := &cobra.Command{
		Use:   "set-location",
		Short: "Update the acting user's location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				loc, err := requireLocation(cmd)
				if err != nil {
					return err
				}
				if err := a.users.UpdateLocation(ctx, actor, loc); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "location updated")
				return nil
			})
		},
	}
	locationFlags(setLocation)
	cmd.AddCommand(setLocation)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-push-token <token>",
		Short: "Register the acting user's device push token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				if err := a.users.RegisterPushToken(ctx, actor, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "push token registered")
				return nil
			})
		},
	})
	return cmd
}

func hospitalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospital",
		Short: "Manage hospitals",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register the hospital the acting staff account runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			address, _ := cmd.Flags().GetString("address")
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				if !actor.Is(identity.RoleHospitalStaff) {
					return apperr.Forbidden("only hospital staff can register a hospital")
				}
				h := &hospital.Hospital{OwnerUserID: actor.UserID, Name: name, Address: address, Phone: optionalString(cmd, "phone")}
				if loc, ok := location(cmd); ok {
					h.Location = &loc
				}
				if err := a.hospitals.Register(ctx, h); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}
	createCmd.Flags().String("name", "", "Hospital name")
	createCmd.Flags().String("address", "", "Street address")
	createCmd.Flags().String("phone", "", "Phone number")
	locationFlags(createCmd)
	cmd.AddCommand(createCmd)

	nearest := &cobra.Command{
		Use:   "nearest",
		Short: "Find the hospital nearest a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				loc, err := requireLocation(cmd)
				if err != nil {
					return err
				}
				n, err := a.hospitals.FindNearest(ctx, loc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"hospital":    n.Hospital,
					"distance_km": geo.RoundKm(n.DistanceKm),
				})
			})
		},
	}
	locationFlags(nearest)
	cmd.AddCommand(nearest)
	return cmd
}

func sosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sos",
		Short: "Drive SOS requests through their lifecycle",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Raise an SOS request as the acting patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				loc, err := requireLocation(cmd)
				if err != nil {
					return err
				}
				in := sos.CreateInput{Kind: sos.Kind(kind), Location: loc, Description: optionalString(cmd, "description")}
				if raw := optionalString(cmd, "blood-type"); raw != nil {
					bt := blood.Type(*raw)
					in.BloodType = &bt
				}
				res, err := a.sos.Create(ctx, actor, in)
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	createCmd.Flags().String("kind", string(sos.KindBlood), "blood or organ")
	createCmd.Flags().String("blood-type", "", "Needed blood type; defaults to the patient's own")
	createCmd.Flags().String("description", "", "Free text shown to donors")
	locationFlags(createCmd)
	cmd.AddCommand(createCmd)

	cmd.AddCommand(idCommand("accept", "Accept an SOS request as the acting donor",
		func(ctx context.Context, a *app, actor identity.Actor, _ *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "sos_id")
			if err != nil {
				return nil, err
			}
			return a.sos.Accept(ctx, actor, id)
		}))
	cmd.AddCommand(idCommand("complete", "Mark the operation of an accepted request completed",
		func(ctx context.Context, a *app, actor identity.Actor, _ *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "sos_id")
			if err != nil {
				return nil, err
			}
			return a.sos.CompleteOperation(ctx, actor, id)
		}))
	cmd.AddCommand(idCommand("cancel-operation", "Mark the operation of an accepted request cancelled",
		func(ctx context.Context, a *app, actor identity.Actor, _ *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "sos_id")
			if err != nil {
				return nil, err
			}
			return a.sos.CancelOperation(ctx, actor, id)
		}))
	cmd.AddCommand(idCommand("cancel", "Withdraw an active request",
		func(ctx context.Context, a *app, actor identity.Actor, _ *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "sos_id")
			if err != nil {
				return nil, err
			}
			return a.sos.Cancel(ctx, actor, id)
		}))
	cmd.AddCommand(idCommand("contact", "Show patient, donor and hospital contacts of an accepted request",
		func(ctx context.Context, a *app, actor identity.Actor, _ *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "sos_id")
			if err != nil {
				return nil, err
			}
			return a.sos.CommunicationInfo(ctx, actor, id)
		}))

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a request with its parties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				id, err := parseID(args[0], "sos_id")
				if err != nil {
					return err
				}
				d, err := a.sos.Details(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "available",
		Short: "List active requests the acting donor can serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				items, err := a.sos.AvailableForDonor(ctx, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the acting patient's requests, or a donor's accepted ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				var status *sos.Status
				if raw := optionalString(cmd, "status"); raw != nil {
					st, ok := sos.ParseStatus(*raw)
					if !ok {
						return apperr.Validation(apperr.CodeInvalidInput, "unknown status").WithDetail("status", *raw)
					}
					status = &st
				}
				p := pagination.New(limit, offset)
				var page *pagination.Page[*sos.Request]
				if actor.Is(identity.RoleDonor) {
					page, err = a.sos.DonationHistory(ctx, actor, status, p)
				} else {
					page, err = a.sos.ListForPatient(ctx, actor, status, p)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	listCmd.Flags().String("status", "", "Only requests in this status")
	listCmd.Flags().Int("limit", pagination.DefaultLimit, "Page size")
	listCmd.Flags().Int("offset", 0, "Page offset")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count requests per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				st, err := a.sos.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	})
	return cmd
}

func hospitalRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hospital-request",
		Aliases: []string{"hr"},
		Short:   "Send and decide direct requests to hospitals",
	}

	submitCmd := &cobra.Command{
		Use:   "submit <hospital-id>",
		Short: "Send a request to a hospital as the acting patient or donor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				hid, err := parseID(args[0], "hospital_id")
				if err != nil {
					return err
				}
				in := hospitalrequest.SubmitInput{HospitalID: hid, Notes: optionalString(cmd, "notes")}
				if raw := optionalString(cmd, "sos"); raw != nil {
					sid, err := parseID(*raw, "sos_id")
					if err != nil {
						return err
					}
					in.SosRequestID = &sid
				}
				res, err := a.requests.Submit(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	submitCmd.Flags().String("sos", "", "SOS request to link")
	submitCmd.Flags().String("notes", "", "Notes for the hospital")
	cmd.AddCommand(submitCmd)

	nearestCmd := &cobra.Command{
		Use:   "submit-nearest",
		Short: "Send a request to the hospital nearest the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				res, err := a.requests.SubmitToNearest(ctx, actor, optionalString(cmd, "notes"))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	nearestCmd.Flags().String("notes", "", "Notes for the hospital")
	cmd.AddCommand(nearestCmd)

	decideCmd := idCommand("decide", "Approve or reject a pending request as hospital staff",
		func(ctx context.Context, a *app, actor identity.Actor, cmd *cobra.Command, raw string) (any, error) {
			id, err := parseID(raw, "request_id")
			if err != nil {
				return nil, err
			}
			approve, _ := cmd.Flags().GetBool("approve")
			reject, _ := cmd.Flags().GetBool("reject")
			if approve == reject {
				return nil, apperr.Validation(apperr.CodeInvalidInput, "pass exactly one of --approve or --reject")
			}
			return a.requests.Decide(ctx, actor, id, approve, optionalString(cmd, "notes"))
		})
	decideCmd.Flags().Bool("approve", false, "Approve the request")
	decideCmd.Flags().Bool("reject", false, "Reject the request")
	decideCmd.Flags().String("notes", "", "Notes for the requester")
	cmd.AddCommand(decideCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "inbox",
		Short: "List requests sent to the acting staff account's hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				items, err := a.requests.ListForHospital(ctx, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cases",
		Short: "Group the acting user's requests by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				actor, err := a.actor(ctx, cmd)
				if err != nil {
					return err
				}
				c, err := a.requests.CasesForRequester(ctx, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	})
	return cmd
}
