package stores

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LoadAccounts loads the username-password table from the database.
func (db *Database) LoadAccounts() (*AccountStore, error) {
	as := &AccountStore{Accounts: make(map[string]string)}
	err := db.txn(func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT username, password FROM accounts`)
		if err != nil {
			return fmt.Errorf("failed to query accounts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var user, pw string
			if err := rows.Scan(&user, &pw); err != nil {
				return fmt.Errorf("failed to scan account: %w", err)
			}
			as.Accounts[user] = pw
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return as, nil
}

// LoadShares loads the share definitions from the database.
func (db *Database) LoadShares() (*SharesStore, error) {
	ss := &SharesStore{}
	err := db.txn(func(ctx context.Context, tx pgx.Tx) error {
		const query = `
			SELECT name, path, remark, writeable, guest_ok, browsable,
				valid_users, invalid_users, read_list, write_list,
				store_dos_attributes, veto_files, create_mask, directory_mask
			FROM shares
		`
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to query shares: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var sh Share
			err := rows.Scan(&sh.Name, &sh.Path, &sh.Remark, &sh.Writeable,
				&sh.GuestOK, &sh.Browsable, &sh.ValidUsers, &sh.InvalidUsers,
				&sh.ReadList, &sh.WriteList, &sh.StoreDosAttributes,
				&sh.VetoFiles, &sh.CreateMask, &sh.DirectoryMask)
			if err != nil {
				return fmt.Errorf("failed to scan share: %w", err)
			}
			ss.Shares = append(ss.Shares, sh)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ss, nil
}

// SaveBan stores or refreshes a ban record.
func (db *Database) SaveBan(host string, ban Ban) error {
	return db.txn(func(ctx context.Context, tx pgx.Tx) error {
		const query = `
			INSERT INTO bans (host, banned_at, reason)
			VALUES ($1, $2, $3)
			ON CONFLICT (host) DO UPDATE
			SET banned_at = EXCLUDED.banned_at, reason = EXCLUDED.reason
		`
		_, err := tx.Exec(ctx, query, host, ban.At, ban.Reason)
		if err != nil {
			return fmt.Errorf("failed to save ban: %w", err)
		}
		return nil
	})
}

// RemoveBan lifts a ban.
func (db *Database) RemoveBan(host string) error {
	return db.txn(func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM bans WHERE host = $1`, host)
		if err != nil {
			return fmt.Errorf("failed to remove ban: %w", err)
		}
		return nil
	})
}

// LoadBans loads the ban table.
func (db *Database) LoadBans() (map[string]Ban, error) {
	bans := make(map[string]Ban)
	err := db.txn(func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT host, banned_at, reason FROM bans`)
		if err != nil {
			return fmt.Errorf("failed to query bans: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var host string
			var ban Ban
			if err := rows.Scan(&host, &ban.At, &ban.Reason); err != nil {
				return fmt.Errorf("failed to scan ban: %w", err)
			}
			bans[host] = ban
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return bans, nil
}
